package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost is fixed above the library default so a single hash lands in
// the tens-of-milliseconds range on commodity hardware.
const bcryptCost = 12

// dummyHash is a valid bcrypt digest of an unguessable value. Login runs a
// comparison against it when the email is unknown so the two failure paths
// cost the same.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword produces a salted bcrypt digest of the plaintext.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plaintext matches the stored digest,
// using bcrypt's own comparison.
func VerifyPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy burns a bcrypt comparison without revealing anything. Always
// returns false.
func VerifyDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
	return false
}

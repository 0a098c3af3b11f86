package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/dmitrijs2005/accountkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "6h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN                string         `json:"database_dsn"`
	MetricsAddr                string         `json:"metrics_addr"`
	SecretKey                  string         `json:"secret_key"`
	SessionValidityDuration    timex.Duration `json:"session_validity_duration"`
	ResetTokenValidityDuration timex.Duration `json:"reset_token_validity_duration"`
	UnverifiedRetention        timex.Duration `json:"unverified_retention"`
	PurgeInterval              timex.Duration `json:"purge_interval"`
	ResetSweepInterval         timex.Duration `json:"reset_sweep_interval"`
	TelemetryInterval          timex.Duration `json:"telemetry_interval"`
	StrictNotifier             *bool          `json:"strict_notifier"`
	SMTPAddr                   string         `json:"smtp_addr"`
	SMTPFrom                   string         `json:"smtp_from"`
	PublicBaseURL              string         `json:"public_base_url"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded.
//
// Only fields present in the file override defaults. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.MetricsAddr != "" {
		config.MetricsAddr = c.MetricsAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.SessionValidityDuration.Duration != 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration != 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if c.UnverifiedRetention.Duration != 0 {
		config.UnverifiedRetention = c.UnverifiedRetention.Duration
	}
	if c.PurgeInterval.Duration != 0 {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.ResetSweepInterval.Duration != 0 {
		config.ResetSweepInterval = c.ResetSweepInterval.Duration
	}
	if c.TelemetryInterval.Duration != 0 {
		config.TelemetryInterval = c.TelemetryInterval.Duration
	}
	if c.StrictNotifier != nil {
		config.StrictNotifier = *c.StrictNotifier
	}
	if c.SMTPAddr != "" {
		config.SMTPAddr = c.SMTPAddr
	}
	if c.SMTPFrom != "" {
		config.SMTPFrom = c.SMTPFrom
	}
	if c.PublicBaseURL != "" {
		config.PublicBaseURL = c.PublicBaseURL
	}
}

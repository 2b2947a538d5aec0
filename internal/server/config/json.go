package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/piggysync/internal/flagx"
	"github.com/dmitrijs2005/piggysync/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept both "500ms" style strings and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr          string         `json:"http_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	CacheDSN          string         `json:"cache_dsn"`
	RedisAddr         string         `json:"redis_addr"`
	RedisPassword     string         `json:"redis_password"`
	RedisDB           *int           `json:"redis_db"`
	CipherKey         string         `json:"cipher_key"`
	CipherSalt        string         `json:"cipher_salt"`
	AuthSecret        string         `json:"auth_secret"`
	ConcurrencyMode   string         `json:"concurrency_mode"`
	OptimisticRetries *int           `json:"optimistic_retries"`
	Debounce          timex.Duration `json:"debounce"`
	LoadTimeout       timex.Duration `json:"load_timeout"`
	ShutdownTimeout   timex.Duration `json:"shutdown_timeout"`
	LogLevel          string         `json:"log_level"`
	Timezone          string         `json:"timezone"`
}

// parseJson loads configuration values from the file named by -c or
// -config. Absent keys keep their current values. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.CacheDSN, c.CacheDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.CipherKey, c.CipherKey)
	setString(&config.CipherSalt, c.CipherSalt)
	setString(&config.AuthSecret, c.AuthSecret)
	setString(&config.ConcurrencyMode, c.ConcurrencyMode)
	if c.OptimisticRetries != nil {
		config.OptimisticRetries = *c.OptimisticRetries
	}
	if c.Debounce.Duration > 0 {
		config.Debounce = c.Debounce.Duration
	}
	if c.LoadTimeout.Duration > 0 {
		config.LoadTimeout = c.LoadTimeout.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.Timezone, c.Timezone)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

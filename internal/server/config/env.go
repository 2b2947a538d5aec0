package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment overlay: http_addr is read from
// PIGGY_HTTP_ADDR and so on.
const EnvPrefix = "PIGGY"

// parseEnv overlays values present in the environment. Unset variables
// leave the current value alone.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	stringKeys := map[string]*string{
		"http_addr":        &config.HTTPAddr,
		"database_dsn":     &config.DatabaseDSN,
		"cache_dsn":        &config.CacheDSN,
		"redis_addr":       &config.RedisAddr,
		"redis_password":   &config.RedisPassword,
		"cipher_key":       &config.CipherKey,
		"cipher_salt":      &config.CipherSalt,
		"auth_secret":      &config.AuthSecret,
		"concurrency_mode": &config.ConcurrencyMode,
		"log_level":        &config.LogLevel,
		"timezone":         &config.Timezone,
	}
	for key, dst := range stringKeys {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	for _, key := range []string{"redis_db", "optimistic_retries", "debounce", "load_timeout", "shutdown_timeout"} {
		_ = v.BindEnv(key)
	}
	if v.IsSet("redis_db") {
		config.RedisDB = v.GetInt("redis_db")
	}
	if v.IsSet("optimistic_retries") {
		config.OptimisticRetries = v.GetInt("optimistic_retries")
	}
	if v.IsSet("debounce") {
		config.Debounce = v.GetDuration("debounce")
	}
	if v.IsSet("load_timeout") {
		config.LoadTimeout = v.GetDuration("load_timeout")
	}
	if v.IsSet("shutdown_timeout") {
		config.ShutdownTimeout = v.GetDuration("shutdown_timeout")
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-l string   SQLite DSN of the view cache
//	-r string   Redis address; empty keeps notifications in-process
//	-k string   cipher key
//	-n string   cipher salt
//	-s string   auth secret
//	-m string   concurrency mode (last-write-wins | optimistic)
//	-b int      realtime debounce, milliseconds
//	-z string   timezone for history days
//	-v string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with -c/-config.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l", "-r", "-k", "-n", "-s", "-m", "-b", "-z", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.CacheDSN, "l", config.CacheDSN, "view cache DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.CipherKey, "k", config.CipherKey, "cipher key")
	fs.StringVar(&config.CipherSalt, "n", config.CipherSalt, "cipher salt")
	fs.StringVar(&config.AuthSecret, "s", config.AuthSecret, "auth secret")
	fs.StringVar(&config.ConcurrencyMode, "m", config.ConcurrencyMode, "concurrency mode")

	debounce := fs.Int("b", int(config.Debounce.Milliseconds()), "realtime debounce (in milliseconds)")

	fs.StringVar(&config.Timezone, "z", config.Timezone, "timezone")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.Debounce = time.Duration(*debounce) * time.Millisecond
}

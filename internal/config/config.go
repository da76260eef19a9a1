// Package config builds the server configuration from flags and
// LOCALLEND_* environment variables. Flags win over the environment.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"
)

// Config holds the server settings.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string
	LogLevel  slog.Level

	// OTLPEndpoint enables trace and metric export when set (host:port).
	OTLPEndpoint string

	// AuthAttemptsPerMinute limits register and login calls per client IP.
	AuthAttemptsPerMinute int
	// TrustProxy takes client IPs from X-Forwarded-For/X-Real-IP.
	TrustProxy bool

	OverdueSweepInterval time.Duration

	// Booking policy.
	MaxBookingDays int
	MaxAdvanceDays int
	MinTrustScore  float64
}

const usage = `Usage: locallend [flags]

Flags:
  -d, -db <path>              SQLite database path (env LOCALLEND_DB, default: locallend.sqlite3)
  -a, -addr <host:port>       listen address (env LOCALLEND_ADDR, default: :8080)
  -u, -user <name>            admin username on first run (env LOCALLEND_ADMIN, default: admin)
  -l, -log <path>             log file path (env LOCALLEND_LOG, default: stdout/stderr only)
  -log-level <level>          debug, info, warn or error (env LOCALLEND_LOG_LEVEL, default: info)
  -otlp <host:port>           OTLP/HTTP telemetry endpoint (env LOCALLEND_OTLP_ENDPOINT, default: off)
  -auth-rate <n>              register/login attempts per minute per IP (env LOCALLEND_AUTH_RATE, default: 10)
  -trust-proxy                take client IPs from forwarding headers (env LOCALLEND_TRUST_PROXY, default: false)
  -sweep <duration>           overdue booking sweep interval (env LOCALLEND_SWEEP_INTERVAL, default: 1h)
  -max-days <n>               longest booking in days (env LOCALLEND_MAX_BOOKING_DAYS, default: 30)
  -advance-days <n>           how far ahead bookings may start (env LOCALLEND_MAX_ADVANCE_DAYS, default: 90)
  -min-trust <score>          minimum borrower trust score (env LOCALLEND_MIN_TRUST, default: 3.0)
  -h, -help                   show this help and exit
`

// Parse reads configuration from args, falling back to getenv and then to
// built-in defaults. It returns flag.ErrHelp when help was requested.
func Parse(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	env := envLookup(getenv)

	fs := flag.NewFlagSet("locallend", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, usage) }

	cfg := &Config{}

	dbPath := env.str("LOCALLEND_DB", "locallend.sqlite3")
	fs.StringVar(&cfg.DBPath, "db", dbPath, "")
	fs.StringVar(&cfg.DBPath, "d", dbPath, "")

	addr := env.str("LOCALLEND_ADDR", ":8080")
	fs.StringVar(&cfg.Addr, "addr", addr, "")
	fs.StringVar(&cfg.Addr, "a", addr, "")

	admin := env.str("LOCALLEND_ADMIN", "admin")
	fs.StringVar(&cfg.AdminUser, "user", admin, "")
	fs.StringVar(&cfg.AdminUser, "u", admin, "")

	logPath := env.str("LOCALLEND_LOG", "")
	fs.StringVar(&cfg.LogPath, "log", logPath, "")
	fs.StringVar(&cfg.LogPath, "l", logPath, "")

	level := env.str("LOCALLEND_LOG_LEVEL", "info")
	fs.StringVar(&level, "log-level", level, "")

	fs.StringVar(&cfg.OTLPEndpoint, "otlp", env.str("LOCALLEND_OTLP_ENDPOINT", ""), "")
	fs.IntVar(&cfg.AuthAttemptsPerMinute, "auth-rate", env.integer("LOCALLEND_AUTH_RATE", 10), "")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", env.boolean("LOCALLEND_TRUST_PROXY", false), "")
	fs.DurationVar(&cfg.OverdueSweepInterval, "sweep", env.duration("LOCALLEND_SWEEP_INTERVAL", time.Hour), "")
	fs.IntVar(&cfg.MaxBookingDays, "max-days", env.integer("LOCALLEND_MAX_BOOKING_DAYS", 30), "")
	fs.IntVar(&cfg.MaxAdvanceDays, "advance-days", env.integer("LOCALLEND_MAX_ADVANCE_DAYS", 90), "")
	fs.Float64Var(&cfg.MinTrustScore, "min-trust", env.number("LOCALLEND_MIN_TRUST", 3.0), "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("database path must not be empty")
	case c.AuthAttemptsPerMinute <= 0:
		return fmt.Errorf("auth rate must be positive, got %d", c.AuthAttemptsPerMinute)
	case c.OverdueSweepInterval <= 0:
		return fmt.Errorf("sweep interval must be positive, got %s", c.OverdueSweepInterval)
	case c.MaxBookingDays <= 0:
		return fmt.Errorf("max booking days must be positive, got %d", c.MaxBookingDays)
	case c.MaxAdvanceDays <= 0:
		return fmt.Errorf("max advance days must be positive, got %d", c.MaxAdvanceDays)
	case c.MinTrustScore < 0 || c.MinTrustScore > 5:
		return fmt.Errorf("min trust score must be between 0 and 5, got %v", c.MinTrustScore)
	}
	return nil
}

// envLookup reads typed defaults from the environment. Unparsable values
// fall back to the default.
type envLookup func(string) string

func (e envLookup) str(key, def string) string {
	if v := e(key); v != "" {
		return v
	}
	return def
}

func (e envLookup) integer(key string, def int) int {
	if v := e(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (e envLookup) boolean(key string, def bool) bool {
	if v := e(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (e envLookup) number(key string, def float64) float64 {
	if v := e(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (e envLookup) duration(key string, def time.Duration) time.Duration {
	if v := e(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

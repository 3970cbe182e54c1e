package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Storage
	DataBackend  string // "sqlite" or "memory"
	SQLiteDBPath string

	// AMQP (optional; empty URL disables the event pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recurring scheduler
	SchedulerEnabled bool
	TickInterval     time.Duration
	TickTimeout      time.Duration
	TickFanout       int

	// Reference timezone for day and bucket boundaries (IANA name).
	Timezone string

	// Sheets export
	SheetsSpreadsheetID string
	SheetsSheetName     string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tally"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_events"),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		TickInterval:     getEnvDuration("TICK_INTERVAL", 30*time.Second),
		TickTimeout:      getEnvDuration("TICK_TIMEOUT", 25*time.Second),
		TickFanout:       getEnvInt("TICK_FANOUT", 4),

		Timezone: getEnv("REFERENCE_TIMEZONE", "Europe/Rome"),

		SheetsSpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:     getEnv("SHEETS_SHEET_NAME", "Ledger"),
	}
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load reference timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite memory]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.TickInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid tick interval %v: must be at least 1 second", c.TickInterval))
	} else if c.TickInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid tick interval %v: must be at most 24 hours", c.TickInterval))
	}

	// A timeout at or above the interval lets slow ticks pile up behind
	// the ticker.
	if c.TickTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid tick timeout %v: must be at least 1 second", c.TickTimeout))
	} else if c.TickTimeout >= c.TickInterval {
		errs = append(errs, fmt.Sprintf("invalid tick timeout %v: must be shorter than the tick interval %v", c.TickTimeout, c.TickInterval))
	}

	if c.TickFanout < 1 || c.TickFanout > 64 {
		errs = append(errs, fmt.Sprintf("invalid tick fanout %d: must be between 1 and 64", c.TickFanout))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid reference timezone '%s': %v", c.Timezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

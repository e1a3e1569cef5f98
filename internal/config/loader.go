package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Storage validation
	if strings.TrimSpace(c.Storage.Root) == "" {
		errs = append(errs, "STORAGE_ROOT must not be empty")
	}
	if c.Storage.MaxFileSize <= 0 {
		errs = append(errs, "STORAGE_MAX_FILE_SIZE must be positive")
	}

	// Transfer validation
	if c.Transfer.BatchSize <= 0 {
		errs = append(errs, "TRANSFER_BATCH_SIZE must be positive")
	}
	if c.Transfer.MaxConcurrent <= 0 {
		errs = append(errs, "TRANSFER_MAX_CONCURRENT must be positive")
	}
	if c.Transfer.MaxWait <= 0 {
		errs = append(errs, "TRANSFER_MAX_WAIT must be positive")
	}

	// ClickHouse validation
	if port, err := strconv.Atoi(c.ClickHouse.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Sprintf("CLICKHOUSE_DEFAULT_PORT (%q) must be 1-65535", c.ClickHouse.Port))
	}
	if c.ClickHouse.DialTimeout <= 0 {
		errs = append(errs, "CLICKHOUSE_DIAL_TIMEOUT must be positive")
	}

	// Journal validation
	if c.Journal.Enabled() {
		if c.Journal.MaxConns <= 0 {
			errs = append(errs, "JOURNAL_MAX_CONNS must be positive")
		}
		if c.Journal.MinConns < 0 {
			errs = append(errs, "JOURNAL_MIN_CONNS must be non-negative")
		}
		if c.Journal.MaxConns < c.Journal.MinConns {
			errs = append(errs, fmt.Sprintf("JOURNAL_MAX_CONNS (%d) must be >= JOURNAL_MIN_CONNS (%d)",
				c.Journal.MaxConns, c.Journal.MinConns))
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.TransferLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_TRANSFER must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The journal URL and API keys are masked.
func (c *Config) String() string {
	journalURL := "[DISABLED]"
	if c.Journal.Enabled() {
		journalURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, ExposeErrors: %v}, ", c.Server.Host, c.Server.Port, c.Server.ExposeErrors)
	fmt.Fprintf(&b, "Storage: {Root: %q, MaxFileSize: %d}, ", c.Storage.Root, c.Storage.MaxFileSize)
	fmt.Fprintf(&b, "Transfer: {BatchSize: %d, MaxConcurrent: %d, DetectTimestamps: %v}, ",
		c.Transfer.BatchSize, c.Transfer.MaxConcurrent, c.Transfer.DetectTimestamps)
	fmt.Fprintf(&b, "ClickHouse: {Host: %q, Port: %q, Database: %q, User: %q}, ",
		c.ClickHouse.Host, c.ClickHouse.Port, c.ClickHouse.Database, c.ClickHouse.User)
	fmt.Fprintf(&b, "Journal: {URL: %s, MaxConns: %d}, ", journalURL, c.Journal.MaxConns)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

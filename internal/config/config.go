package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func New() (*Config, error) {
	return NewWithFile("")
}

// NewWithFile is New with an explicit config file path. An empty path
// searches the default locations.
func NewWithFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mail-triage/")
		v.AddConfigPath("$HOME/.mail-triage")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	homeEnv := filepath.Join(home, ".mail-triage", ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		_ = godotenv.Load(homeEnv)
	}
}

// DefaultMailboxes maps each mailbox role key to its default folder name.
// The review folders share the names of the folders the owner confirms into.
var DefaultMailboxes = map[string]string{
	"inbox":            "INBOX",
	"sent":             "Sent",
	"junk":             "Junk",
	"requests":         "Requests",
	"fyi":              "FYI",
	"closed":           "Closed",
	"requests_triage":  "Requests",
	"fyi_triage":       "FYI",
	"closed_triage":    "Closed",
	"junk_triage":      "JunkTriage",
	"blacklist":        "Blacklist",
	"blacklist_triage": "StrangersINBOX",
	"strangers_inbox":  "StrangersINBOX",
	"drafts":           "Drafts",
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "mail-triage.db")

	// Transport defaults
	v.SetDefault("transport.batch_size", 200)
	v.SetDefault("transport.initial_backoff", "1s")
	v.SetDefault("transport.max_backoff", "60s")

	// Mailbox names
	for role, name := range DefaultMailboxes {
		v.SetDefault("mailboxes."+role, name)
	}

	// Ingest defaults
	v.SetDefault("ingest.default_tz_offset", "-7h")
	v.SetDefault("ingest.max_header_bytes", 16384)

	// Threading defaults
	v.SetDefault("thread.subject_p", 0.004)
	v.SetDefault("thread.link_p", 0.2)
	v.SetDefault("thread.min_thread_gaps", 1)
	v.SetDefault("thread.reply_prefixes", []string{"re:"})

	// Reputation defaults
	v.SetDefault("reputation.notjunk_p", 0.5)
	v.SetDefault("reputation.junk_p", 0.001)
	v.SetDefault("reputation.keep_verdicts", []string{"requests", "fyi", "closed"})

	// Triage defaults
	v.SetDefault("triage.request_p", 0.05)
	v.SetDefault("triage.junk_p", 0.05)
	v.SetDefault("triage.fyi_replies", 1)
	v.SetDefault("triage.max_junk_replies", 0)
	v.SetDefault("triage.notjunk_domains", []string{})

	// Review defaults
	v.SetDefault("review.mode", "prompt")

	// Local mailbox and sending defaults
	v.SetDefault("maildir.path", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.keyring_key", "")
	v.SetDefault("smtp.security", "")

	// Credential defaults
	v.SetDefault("keyring.service", "mail-triage")
	v.SetDefault("keyring.file_dir", "~/.mail-triage/keyring")
	v.SetDefault("keyring.file_password", "")

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

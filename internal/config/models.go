package config

import (
	"fmt"
	"time"
)

// StoreConfig represents the configuration of the message store
type StoreConfig struct {
	Driver string
	DSN    string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ServerConfig represents one remote mail server
type ServerConfig struct {
	ID         int    `mapstructure:"id"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	TLS        bool   `mapstructure:"tls"`
	KeyringKey string `mapstructure:"keyring_key"`
}

// TransportConfig represents the retry and batching settings of transports
type TransportConfig struct {
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// IngestConfig represents the header ingestion settings
type IngestConfig struct {
	DefaultTZOffset time.Duration
	MaxHeaderBytes  int
}

// ThreadConfig represents the thread reconstruction settings
type ThreadConfig struct {
	SubjectP      float64
	LinkP         float64
	MinThreadGaps int
	ReplyPrefixes []string
}

// ReputationConfig represents the verdict scoring settings
type ReputationConfig struct {
	NotJunkP     float64
	JunkP        float64
	KeepVerdicts []string
}

// TriageConfig represents the routing thresholds
type TriageConfig struct {
	RequestP       float64
	JunkP          float64
	FYIReplies     int
	MaxJunkReplies int
	NotJunkDomains []string
}

// SMTPConfig represents the outgoing mail server
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	KeyringKey string
	Security   string
}

// KeyringConfig represents the credential store settings
type KeyringConfig struct {
	Service      string
	FileDir      string
	FilePassword string
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Driver: c.GetString("store.driver"),
		DSN:    c.GetString("store.dsn"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:      c.GetString("logging.level"),
		Format:     c.GetString("logging.format"),
		File:       c.GetString("logging.file"),
		MaxSizeMB:  c.GetInt("logging.max_size_mb"),
		MaxBackups: c.GetInt("logging.max_backups"),
		MaxAgeDays: c.GetInt("logging.max_age_days"),
	}
}

// GetServers returns the configured mail servers. Servers without an id are
// numbered from 1 in list order; port defaults to 993 with TLS, 143 without.
func (c *Config) GetServers() ([]ServerConfig, error) {
	var servers []ServerConfig
	if err := c.v.UnmarshalKey("servers", &servers); err != nil {
		return nil, fmt.Errorf("failed to parse servers: %w", err)
	}

	seen := map[int]bool{}
	for i := range servers {
		s := &servers[i]
		if s.Host == "" {
			return nil, fmt.Errorf("server %d has no host", i+1)
		}
		if s.ID == 0 {
			s.ID = i + 1
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate server id %d", s.ID)
		}
		seen[s.ID] = true
		if s.Port == 0 {
			s.Port = 143
			if s.TLS {
				s.Port = 993
			}
		}
	}
	return servers, nil
}

// GetMailboxes returns the folder name of every mailbox role key
func (c *Config) GetMailboxes() map[string]string {
	names := make(map[string]string, len(DefaultMailboxes))
	for role := range DefaultMailboxes {
		names[role] = c.GetString("mailboxes." + role)
	}
	return names
}

// GetTransport returns the transport configuration
func (c *Config) GetTransport() (TransportConfig, error) {
	initial, err := c.GetDuration("transport.initial_backoff")
	if err != nil {
		return TransportConfig{}, err
	}
	maxBackoff, err := c.GetDuration("transport.max_backoff")
	if err != nil {
		return TransportConfig{}, err
	}
	batch := c.GetInt("transport.batch_size")
	if batch <= 0 {
		batch = 200
	}
	return TransportConfig{BatchSize: batch, InitialBackoff: initial, MaxBackoff: maxBackoff}, nil
}

// GetIngest returns the ingestion configuration
func (c *Config) GetIngest() (IngestConfig, error) {
	offset, err := c.GetDuration("ingest.default_tz_offset")
	if err != nil {
		return IngestConfig{}, err
	}
	return IngestConfig{
		DefaultTZOffset: offset,
		MaxHeaderBytes:  c.GetInt("ingest.max_header_bytes"),
	}, nil
}

// GetThread returns the thread reconstruction configuration
func (c *Config) GetThread() ThreadConfig {
	return ThreadConfig{
		SubjectP:      c.GetFloat64("thread.subject_p"),
		LinkP:         c.GetFloat64("thread.link_p"),
		MinThreadGaps: c.GetInt("thread.min_thread_gaps"),
		ReplyPrefixes: c.GetStringSlice("thread.reply_prefixes"),
	}
}

// GetReputation returns the verdict scoring configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		NotJunkP:     c.GetFloat64("reputation.notjunk_p"),
		JunkP:        c.GetFloat64("reputation.junk_p"),
		KeepVerdicts: c.GetStringSlice("reputation.keep_verdicts"),
	}
}

// GetTriage returns the routing thresholds
func (c *Config) GetTriage() TriageConfig {
	return TriageConfig{
		RequestP:       c.GetFloat64("triage.request_p"),
		JunkP:          c.GetFloat64("triage.junk_p"),
		FYIReplies:     c.GetInt("triage.fyi_replies"),
		MaxJunkReplies: c.GetInt("triage.max_junk_replies"),
		NotJunkDomains: c.GetStringSlice("triage.notjunk_domains"),
	}
}

// GetSMTP returns the outgoing mail server configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Host:       c.GetString("smtp.host"),
		Port:       c.GetInt("smtp.port"),
		Username:   c.GetString("smtp.username"),
		Password:   c.GetString("smtp.password"),
		KeyringKey: c.GetString("smtp.keyring_key"),
		Security:   c.GetString("smtp.security"),
	}
}

// GetKeyring returns the credential store configuration
func (c *Config) GetKeyring() KeyringConfig {
	return KeyringConfig{
		Service:      c.GetString("keyring.service"),
		FileDir:      c.GetString("keyring.file_dir"),
		FilePassword: c.GetString("keyring.file_password"),
	}
}

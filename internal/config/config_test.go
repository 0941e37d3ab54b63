package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, StoreConfig{Driver: "sqlite3", DSN: "mail-triage.db"}, cfg.GetStore())

	tr, err := cfg.GetTransport()
	require.NoError(t, err)
	assert.Equal(t, TransportConfig{BatchSize: 200, InitialBackoff: time.Second, MaxBackoff: time.Minute}, tr)

	in, err := cfg.GetIngest()
	require.NoError(t, err)
	assert.Equal(t, -7*time.Hour, in.DefaultTZOffset)

	th := cfg.GetThread()
	assert.Equal(t, 0.004, th.SubjectP)
	assert.Equal(t, 0.2, th.LinkP)
	assert.Equal(t, 1, th.MinThreadGaps)
	assert.Equal(t, []string{"re:"}, th.ReplyPrefixes)

	tg := cfg.GetTriage()
	assert.Equal(t, 0.05, tg.RequestP)
	assert.Equal(t, 0.05, tg.JunkP)
	assert.Equal(t, 1, tg.FYIReplies)
	assert.Equal(t, 0, tg.MaxJunkReplies)

	rep := cfg.GetReputation()
	assert.Equal(t, 0.5, rep.NotJunkP)
	assert.Equal(t, 0.001, rep.JunkP)

	boxes := cfg.GetMailboxes()
	assert.Equal(t, "INBOX", boxes["inbox"])
	assert.Equal(t, "StrangersINBOX", boxes["blacklist_triage"])
	assert.Equal(t, boxes["requests"], boxes["requests_triage"])

	servers, err := cfg.GetServers()
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: mysql
  dsn: "u:p@tcp(db:3306)/triage"
servers:
  - host: imap.example.com
    username: me
    tls: true
    keyring_key: imap-main
  - id: 7
    host: mail.example.org
    port: 1143
mailboxes:
  requests_triage: ToDo
transport:
  max_backoff: 10s
`), 0o644))

	cfg, err := NewWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.GetStore().Driver)

	servers, err := cfg.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, ServerConfig{ID: 1, Host: "imap.example.com", Port: 993, Username: "me", TLS: true, KeyringKey: "imap-main"}, servers[0])
	assert.Equal(t, 7, servers[1].ID)
	assert.Equal(t, 1143, servers[1].Port)

	assert.Equal(t, "ToDo", cfg.GetMailboxes()["requests_triage"])
	assert.Equal(t, "Requests", cfg.GetMailboxes()["requests"])

	tr, err := cfg.GetTransport()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, tr.MaxBackoff)
}

func TestInvalidValues(t *testing.T) {
	v := NewEmptyViper()
	v.Set("ingest.default_tz_offset", "seven hours")
	v.Set("servers", []map[string]any{{"host": "a"}, {"id": 1, "host": "b"}})
	cfg := NewFromViper(v)

	_, err := cfg.GetIngest()
	assert.ErrorContains(t, err, "ingest.default_tz_offset")

	_, err = cfg.GetServers()
	assert.ErrorContains(t, err, "duplicate server id")

	_, err = NewWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

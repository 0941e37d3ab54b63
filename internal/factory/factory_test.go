package factory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/review"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

func newConfig(settings map[string]interface{}) *config.Config {
	v := config.NewEmptyViper()
	for k, val := range settings {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func TestCreateServiceConfig(t *testing.T) {
	cfg := newConfig(map[string]interface{}{
		"thread.subject_p":         0.01,
		"triage.fyi_replies":       2,
		"reputation.keep_verdicts": []string{"requests", "closed"},
	})
	sc, err := NewServiceFactory(cfg, zap.NewNop()).CreateServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, 200, sc.BatchSize)
	assert.Equal(t, 0.01, sc.Thread.Linker.SubjectP)
	assert.Equal(t, 0.2, sc.Thread.Linker.LinkP)
	assert.Equal(t, 2, sc.Buckets.FYIReplies)
	assert.Equal(t, 0.001, sc.Verdict.JunkP)
	assert.Equal(t, []core.Role{core.RoleRequests, core.RoleClosed}, sc.KeepVerdicts)
	assert.Equal(t, "StrangersINBOX", sc.Mailboxes.Name(core.RoleBlacklistTriage))

	t.Run("unknown verdict", func(t *testing.T) {
		cfg := newConfig(map[string]interface{}{"reputation.keep_verdicts": []string{"archive"}})
		_, err := NewServiceFactory(cfg, zap.NewNop()).CreateServiceConfig()
		assert.ErrorContains(t, err, `unknown verdict "archive"`)
	})
}

func TestCreateReviewer(t *testing.T) {
	f := NewDeliveryFactory(newConfig(map[string]interface{}{"review.mode": "auto"}), nil, zap.NewNop())
	r, err := f.CreateReviewer()
	require.NoError(t, err)
	assert.IsType(t, &review.Auto{}, r)

	f = NewDeliveryFactory(newConfig(map[string]interface{}{"review.mode": "email"}), nil, zap.NewNop())
	_, err = f.CreateReviewer()
	assert.Error(t, err)
}

func TestCreateSenderDisabled(t *testing.T) {
	f := NewDeliveryFactory(newConfig(nil), nil, zap.NewNop())
	s, err := f.CreateSender()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCreateSenderInlinePassword(t *testing.T) {
	cfg := newConfig(map[string]interface{}{
		"smtp.host":     "smtp.example.com",
		"smtp.username": "me",
		"smtp.password": "s3cret",
	})
	f := NewDeliveryFactory(cfg, NewCredentialFactory(cfg, zap.NewNop()), zap.NewNop())
	s, err := f.CreateSender()
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCreateServers(t *testing.T) {
	cfg := newConfig(map[string]interface{}{
		"servers": []map[string]interface{}{
			{"host": "imap.example.com", "username": "me", "password": "pw", "tls": true},
			{"id": 7, "host": "mail.example.org", "username": "other", "password": "pw"},
		},
	})
	f := NewTransportFactory(cfg, NewCredentialFactory(cfg, zap.NewNop()), zap.NewNop())
	servers, err := f.CreateServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, 1, servers[0].ID)
	assert.Equal(t, "me@imap.example.com", servers[0].Name)
	assert.Equal(t, 7, servers[1].ID)
	assert.NotNil(t, servers[1].Transport)

	n, err := f.BatchSize()
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}

func TestCreateServersMissingCredential(t *testing.T) {
	cfg := newConfig(map[string]interface{}{
		"servers": []map[string]interface{}{{"host": "imap.example.com", "username": "me"}},
	})
	f := NewTransportFactory(cfg, NewCredentialFactory(cfg, zap.NewNop()), zap.NewNop())
	_, err := f.CreateServers()
	assert.ErrorContains(t, err, "failed to resolve password for imap.example.com")
}

func TestCreateStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "triage.db")
	cfg := newConfig(map[string]interface{}{"store.driver": "sqlite", "store.dsn": dsn})
	s, err := NewStoreFactory(cfg, zap.NewNop()).CreateStore()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, dsn)

	cfg = newConfig(map[string]interface{}{"store.driver": "postgres"})
	_, err = NewStoreFactory(cfg, zap.NewNop()).CreateStore()
	assert.ErrorContains(t, err, "unsupported store driver")
}

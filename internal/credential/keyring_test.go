package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: "imap-main", Data: []byte("s3cret")},
	}))

	got, err := s.Resolve("inline", "imap-main")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = s.Resolve("", "imap-main")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = s.Resolve("", "")
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = s.Resolve("", "missing")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	var none *Store
	_, err = none.Resolve("", "imap-main")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))
	require.NoError(t, s.Set("smtp", "pw"))
	got, err := s.Get("smtp")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
}

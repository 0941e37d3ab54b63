package maildir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMaildir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".Sent", "cur", "1700000000.1.host:2,RS"),
		"Message-ID: <a@x>\r\nSubject: Hi\r\n\r\nbody text\r\n")
	writeFile(t, filepath.Join(root, ".Sent", "new", "1700000001.2.host"),
		"Message-ID: <b@x>\nSubject: No body")
	writeFile(t, filepath.Join(root, ".Archive", "cur", "1700000002.3.host:2,"),
		"Message-ID: <c@x>\n\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cur"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))

	d := New(root, zap.NewNop())
	ctx := context.Background()

	boxes, err := d.Mailboxes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".Archive", ".Sent"}, boxes)

	msgs, err := d.Messages(ctx, ".Sent")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "1700000000.1.host", msgs[0].ID)
	assert.Equal(t, "RS", msgs[0].Flags)
	assert.Equal(t, "Message-ID: <a@x>\r\nSubject: Hi\r\n\r\n", string(msgs[0].Header))

	assert.Equal(t, "1700000001.2.host", msgs[1].ID)
	assert.Empty(t, msgs[1].Flags)
	assert.Equal(t, "Message-ID: <b@x>\nSubject: No body", string(msgs[1].Header))

	_, err = d.Messages(ctx, ".Missing")
	assert.Error(t, err)
}

func TestSplitName(t *testing.T) {
	id, flags := splitName("123.abc:2,FRS")
	assert.Equal(t, "123.abc", id)
	assert.Equal(t, "FRS", flags)

	id, flags = splitName("123.abc")
	assert.Equal(t, "123.abc", id)
	assert.Empty(t, flags)
}

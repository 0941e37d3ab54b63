package templates

import (
	"bytes"
	"io"
	"testing"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateDraft = "From: Me <me@example.com>\r\n" +
	"Subject: :template: thanks\r\n" +
	"\r\n" +
	"Dear {{.name}},\r\nThanks for the {{.item}}.\r\n"

const requestDraft = "From: Me <me@example.com>\r\n" +
	"To: Jane <jane@example.com>\r\n" +
	"Cc: bob@example.com\r\n" +
	"Subject: Your review\r\n" +
	"\r\n" +
	":respect: thanks\r\n" +
	":name: Jane Doe  \r\n" +
	":item: detailed review\r\n" +
	"not a field line\r\n"

func TestCollectAndRender(t *testing.T) {
	set, reqs, err := Collect([]Draft{
		{UID: 1, Raw: []byte(templateDraft)},
		{UID: 2, Raw: []byte(requestDraft)},
		{UID: 3, Raw: []byte("Subject: just a draft\r\n\r\nhello\r\n")},
	})
	require.NoError(t, err)
	require.Contains(t, set, "thanks")
	require.Len(t, reqs, 1)

	req := reqs[0]
	assert.Equal(t, uint32(2), req.UID)
	assert.Equal(t, "thanks", req.Name)
	assert.Equal(t, "Jane Doe", req.Fields["name"])
	assert.Equal(t, "detailed review", req.Fields["item"])

	out, err := set.Render(req)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", out.From)
	assert.Equal(t, []string{"jane@example.com", "bob@example.com", "me@example.com"}, out.Recipients)

	entity, err := message.Read(bytes.NewReader(out.Data))
	require.NoError(t, err)
	h := mail.Header{Header: entity.Header}
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Your review", subject)
	assert.Empty(t, h.Get("Bcc"))

	body, err := io.ReadAll(entity.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Dear Jane Doe,")
	assert.Contains(t, string(body), "Thanks for the detailed review.")
}

func TestRenderErrors(t *testing.T) {
	set, reqs, err := Collect([]Draft{
		{UID: 1, Raw: []byte(templateDraft)},
		{UID: 2, Raw: []byte("From: me@example.com\r\nTo: a@example.com\r\n\r\n:respect: thanks\r\n:name: A\r\n")},
		{UID: 3, Raw: []byte("From: me@example.com\r\nTo: a@example.com\r\n\r\n:respect: sorry\r\n")},
	})
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	_, err = set.Render(reqs[0])
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = set.Render(reqs[1])
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestParseFields(t *testing.T) {
	fields := parseFields([]byte(":respect: thanks\n:: empty\n:a:b\n:key: two words \n"))
	assert.Equal(t, map[string]string{"respect": "thanks", "key": "two words"}, fields)
}

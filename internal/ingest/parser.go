// Package ingest turns raw header blocks into stored message metadata.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
)

// ErrEmptyHeader is returned for a header block without any field
var ErrEmptyHeader = errors.New("empty header block")

// uncappedFields carry message identifier lists that threading reads in full
var uncappedFields = map[string]bool{"references": true, "in-reply-to": true}

// recipientFields are the headers checked for owner addresses
var recipientFields = []string{"To", "Cc", "Resent-To", "Resent-Cc"}

// Config holds the parser settings
type Config struct {
	// DefaultTZOffset is the zone assumed for dates without one
	DefaultTZOffset time.Duration
	// MaxHeaderBytes caps each stored header value; zero disables the cap
	MaxHeaderBytes int
}

// Parser implements core.HeaderParser on top of go-message
type Parser struct {
	cfg    Config
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewParser creates a header parser
func NewParser(cfg Config, text *utils.TextProcessor, logger *zap.Logger) *Parser {
	return &Parser{cfg: cfg, text: text, logger: logger}
}

// Parse reads the header block at the start of raw. Undecodable values are
// kept in their raw form and malformed dates resolve to nil.
func (p *Parser) Parse(raw []byte, owners map[string]bool) (*core.ParsedHeader, error) {
	if !bytes.Contains(raw, []byte("\n\n")) && !bytes.Contains(raw, []byte("\r\n\r\n")) {
		raw = append(append([]byte(nil), raw...), "\r\n\r\n"...)
	}
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to read header block: %w", err)
	}
	if th.Len() == 0 {
		return nil, ErrEmptyHeader
	}
	h := mail.Header{Header: message.Header{Header: th}}

	parsed := &core.ParsedHeader{
		MessageID: strings.TrimSpace(h.Get("Message-Id")),
		Received:  strings.TrimSpace(h.Get("Received")),
		Headers:   p.headerMap(&h),
	}

	if subject, err := h.Subject(); err == nil {
		parsed.Subject = p.text.NormalizeText(strings.TrimSpace(subject))
	} else {
		parsed.Subject = p.text.NormalizeText(strings.TrimSpace(h.Get("Subject")))
	}

	from := addresses(&h, "From")
	if len(from) > 0 {
		parsed.Sender = from[0]
	}
	parsed.Date = ParseDate(h.Get("Date"), p.cfg.DefaultTZOffset)
	parsed.FromMe = FromMe(from, recipients(&h), parsed.Received != "", owners)
	return parsed, nil
}

// headerMap decodes every field, keyed by lower-cased name. The first
// occurrence of a repeated field wins.
func (p *Parser) headerMap(h *mail.Header) map[string]string {
	out := make(map[string]string, h.Len())
	fields := h.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		if _, seen := out[key]; seen {
			continue
		}
		value, err := h.Text(key)
		if err != nil {
			p.logger.Debug("Keeping undecodable header value",
				zap.String("header", key),
				zap.Error(err))
			value = h.Get(key)
		}
		limit := p.cfg.MaxHeaderBytes
		if uncappedFields[key] {
			limit = 0
		}
		out[key] = p.text.ProcessText(value, limit)
	}
	return out
}

// addresses returns the lower-cased addresses of every occurrence of key
func addresses(h *mail.Header, key string) []string {
	var out []string
	fields := h.FieldsByKey(key)
	for fields.Next() {
		list, err := mail.ParseAddressList(fields.Value())
		if err != nil {
			if addr := looseAddress(fields.Value()); addr != "" {
				out = append(out, addr)
			}
			continue
		}
		for _, a := range list {
			if a.Address != "" {
				out = append(out, strings.ToLower(a.Address))
			}
		}
	}
	return out
}

func recipients(h *mail.Header) []string {
	var out []string
	for _, key := range recipientFields {
		out = append(out, addresses(h, key)...)
	}
	return out
}

// looseAddress salvages an address from a value the RFC 5322 parser rejects
func looseAddress(value string) string {
	if i := strings.LastIndex(value, "<"); i >= 0 {
		if j := strings.Index(value[i:], ">"); j > 0 {
			return strings.ToLower(strings.TrimSpace(value[i+1 : i+j]))
		}
	}
	for _, tok := range strings.Fields(value) {
		tok = strings.Trim(tok, `"',;<>()`)
		if strings.Contains(tok, "@") {
			return strings.ToLower(tok)
		}
	}
	return ""
}

// SenderOf returns the lower-cased address of a stored From header value
func SenderOf(from string) string {
	list, err := mail.ParseAddressList(from)
	if err != nil || len(list) == 0 {
		return looseAddress(from)
	}
	return strings.ToLower(list[0].Address)
}

// FromMe decides whether the owner authored a message: true when a From
// address is an owner address, false when the message was received or names
// the owner as a recipient, unknown (nil) otherwise.
func FromMe(from, to []string, received bool, owners map[string]bool) *bool {
	for _, a := range from {
		if owners[a] {
			v := true
			return &v
		}
	}
	if received {
		v := false
		return &v
	}
	for _, a := range to {
		if owners[a] {
			v := false
			return &v
		}
	}
	return nil
}

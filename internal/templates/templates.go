// Package templates expands reply drafts from named template drafts.
//
// A draft whose subject is ":template: <name>" defines a template body. A
// plain text draft whose body starts with ":respect: <name>" requests that
// template; every ":key: value" line of its body becomes a template field.
// Templates use text/template syntax, e.g. "Dear {{.name}},".
package templates

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

const (
	templateMarker = ":template:"
	requestMarker  = ":respect:"
)

var (
	// ErrUnknownTemplate is returned when a request names no known template
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrMissingField is returned when a template references an absent field
	ErrMissingField = errors.New("template field missing")
)

// Draft is one raw message read from the drafts folder
type Draft struct {
	UID uint32
	Raw []byte
}

// Request is a draft asking for a template to be applied
type Request struct {
	UID    uint32
	Name   string
	Fields map[string]string
	header message.Header
}

// Outgoing is a rendered message ready to send
type Outgoing struct {
	UID        uint32
	From       string
	Recipients []string
	Data       []byte
}

// Set holds the parsed templates by name
type Set map[string]*template.Template

// Collect splits drafts into template definitions and requests. Drafts
// that are neither are ignored.
func Collect(drafts []Draft) (Set, []Request, error) {
	set := Set{}
	var reqs []Request

	for _, d := range drafts {
		entity, err := message.Read(bytes.NewReader(d.Raw))
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, nil, fmt.Errorf("failed to read draft %d: %w", d.UID, err)
		}
		h := mail.Header{Header: entity.Header}

		subject, _ := h.Subject()
		if strings.HasPrefix(subject, templateMarker) {
			fields := strings.Fields(strings.TrimPrefix(subject, templateMarker))
			if len(fields) == 0 {
				continue
			}
			body, err := io.ReadAll(entity.Body)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read template %s: %w", fields[0], err)
			}
			t, err := template.New(fields[0]).Option("missingkey=error").Parse(string(body))
			if err != nil {
				return nil, nil, fmt.Errorf("failed to parse template %s: %w", fields[0], err)
			}
			set[fields[0]] = t
			continue
		}

		if entity.MultipartReader() != nil {
			continue
		}
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read draft %d: %w", d.UID, err)
		}
		if !bytes.HasPrefix(body, []byte(requestMarker)) {
			continue
		}

		fields := parseFields(body)
		reqs = append(reqs, Request{
			UID:    d.UID,
			Name:   fields[strings.Trim(requestMarker, ":")],
			Fields: fields,
			header: entity.Header,
		})
	}
	return set, reqs, nil
}

// parseFields reads ":key: value" lines
func parseFields(body []byte) map[string]string {
	fields := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		key := parts[0]
		if len(key) < 3 || !strings.HasPrefix(key, ":") || !strings.HasSuffix(key, ":") {
			continue
		}
		value := strings.TrimSpace(line[strings.Index(line, key)+len(key):])
		fields[key[1:len(key)-1]] = strings.TrimRight(value, " \t\r")
	}
	return fields
}

// Render applies the requested template. The sender receives a blind copy.
func (s Set) Render(req Request) (*Outgoing, error) {
	t, ok := s[req.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, req.Name)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, req.Fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingField, err)
	}

	h := mail.Header{Header: message.Header{Header: req.header.Header.Copy()}}
	from, err := h.AddressList("From")
	if err != nil || len(from) == 0 {
		return nil, fmt.Errorf("draft %d has no sender", req.UID)
	}

	var recipients []string
	for _, key := range []string{"To", "Cc", "Bcc"} {
		if h.Get(key) == "" {
			continue
		}
		list, err := h.AddressList(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s of draft %d: %w", key, req.UID, err)
		}
		for _, a := range list {
			recipients = append(recipients, a.Address)
		}
	}
	recipients = append(recipients, from[0].Address)

	h.Del("Bcc")
	h.Del("Content-Transfer-Encoding")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var out bytes.Buffer
	w, err := message.CreateWriter(&out, h.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}

	return &Outgoing{
		UID:        req.UID,
		From:       from[0].Address,
		Recipients: recipients,
		Data:       out.Bytes(),
	}, nil
}

// Package maildir reads locally stored Maildir++ folders for import.
package maildir

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// infoSeparator splits a message file name into its unique id and info part
const infoSeparator = ":2,"

// Dir implements core.LocalMailbox over a Maildir++ root directory
type Dir struct {
	root   string
	logger *zap.Logger
}

// New returns a reader for the Maildir root at path
func New(path string, logger *zap.Logger) *Dir {
	return &Dir{root: path, logger: logger}
}

// Mailboxes lists the dot-prefixed folders below the root
func (d *Dir) Mailboxes(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read maildir root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Messages returns every message of mailbox found in cur/ and new/. Files
// that cannot be read are logged and skipped.
func (d *Dir) Messages(ctx context.Context, mailbox string) ([]core.LocalMessage, error) {
	base := filepath.Join(d.root, mailbox)
	if _, err := os.Stat(base); err != nil {
		return nil, fmt.Errorf("failed to open mailbox %s: %w", mailbox, err)
	}

	var out []core.LocalMessage
	for _, sub := range []string{"cur", "new"} {
		entries, err := os.ReadDir(filepath.Join(base, sub))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", mailbox, sub, err)
		}

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}

			path := filepath.Join(base, sub, e.Name())
			header, err := readHeader(path)
			if err != nil {
				d.logger.Warn("Skipping unreadable message",
					zap.String("mailbox", mailbox),
					zap.String("path", path),
					zap.Error(err))
				continue
			}

			id, flags := splitName(e.Name())
			out = append(out, core.LocalMessage{ID: id, Flags: flags, Header: header})
		}
	}
	return out, nil
}

// splitName separates the unique id from the info flags of a file name
func splitName(name string) (id, flags string) {
	if i := strings.Index(name, infoSeparator); i >= 0 {
		return name[:i], name[i+len(infoSeparator):]
	}
	return name, ""
}

// readHeader returns the bytes up to and including the blank line ending
// the header block
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		buf.Write(line)
		if len(bytes.TrimRight(line, "\r\n")) == 0 && len(line) > 0 {
			break
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Package imap implements the remote mailbox transport over IMAP4rev1.
package imap

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// ServerConfig holds the connection settings of one mail server
type ServerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// Addr returns host:port for the server
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is a single logged-in IMAP connection. It implements
// core.Transport but does not recover from dropped connections.
type Session struct {
	client *imapclient.Client
	logger *zap.Logger
}

// Dial connects and authenticates a new session
func Dial(_ context.Context, cfg ServerConfig, logger *zap.Logger) (*Session, error) {
	addr := cfg.Addr()

	var client *imapclient.Client
	var err error
	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", cfg.Username, err)
	}

	logger.Debug("Connected to IMAP server",
		zap.String("addr", addr),
		zap.String("username", cfg.Username))
	return &Session{client: client, logger: logger}, nil
}

func uidSet(uids []uint32) imap.UIDSet {
	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}
	return imap.UIDSetNum(set...)
}

func toFlags(flags []string) []imap.Flag {
	out := make([]imap.Flag, len(flags))
	for i, f := range flags {
		out[i] = imap.Flag(f)
	}
	return out
}

// SelectFolder opens folder read-write
func (s *Session) SelectFolder(_ context.Context, folder string) error {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}
	return nil
}

// Search returns the UIDs in the selected folder matching criteria
func (s *Session) Search(_ context.Context, criteria core.SearchCriteria) ([]uint32, error) {
	c := &imap.SearchCriteria{}
	if criteria.Unseen {
		c.NotFlag = append(c.NotFlag, imap.FlagSeen)
	}
	if criteria.NotDeleted {
		c.NotFlag = append(c.NotFlag, imap.FlagDeleted)
	}

	data, err := s.client.UIDSearch(c, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	all := data.AllUIDs()
	uids := make([]uint32, len(all))
	for i, u := range all {
		uids[i] = uint32(u)
	}
	return uids, nil
}

// Fetch returns flags and the header block or full message of each UID.
// Bodies are fetched with PEEK so the \Seen flag is left untouched.
func (s *Session) Fetch(_ context.Context, uids []uint32, part core.FetchPart) ([]core.FetchedMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	if part == core.FetchHeader {
		section.Specifier = imap.PartSpecifierHeader
	}

	cmd := s.client.Fetch(uidSet(uids), &imap.FetchOptions{
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	out := make([]core.FetchedMessage, 0, len(uids))
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			return out, fmt.Errorf("collecting message data: %w", err)
		}

		flags := make([]string, len(buf.Flags))
		for i, f := range buf.Flags {
			flags[i] = string(f)
		}
		out = append(out, core.FetchedMessage{
			UID:   uint32(buf.UID),
			Flags: flags,
			Body:  buf.FindBodySection(section),
		})
	}

	if err := cmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

// Copy copies UIDs from the selected folder to dest
func (s *Session) Copy(_ context.Context, uids []uint32, dest string) error {
	if len(uids) == 0 {
		return nil
	}
	if _, err := s.client.Copy(uidSet(uids), dest).Wait(); err != nil {
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	return nil
}

// Delete marks UIDs \Deleted
func (s *Session) Delete(_ context.Context, uids []uint32) error {
	return s.storeFlags(uids, imap.StoreFlagsAdd, []imap.Flag{imap.FlagDeleted})
}

// RemoveFlags clears flags on UIDs
func (s *Session) RemoveFlags(_ context.Context, uids []uint32, flags []string) error {
	return s.storeFlags(uids, imap.StoreFlagsDel, toFlags(flags))
}

func (s *Session) storeFlags(uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error {
	if len(uids) == 0 || len(flags) == 0 {
		return nil
	}
	err := s.client.Store(uidSet(uids), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("storing flags: %w", err)
	}
	return nil
}

// Expunge permanently removes \Deleted messages from the selected folder
func (s *Session) Expunge(_ context.Context) error {
	if err := s.client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging: %w", err)
	}
	return nil
}

// ListFolders returns every folder name on the server
func (s *Session) ListFolders(_ context.Context) ([]string, error) {
	list, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	names := make([]string, len(list))
	for i, l := range list {
		names[i] = l.Mailbox
	}
	return names, nil
}

// CreateFolder creates a folder
func (s *Session) CreateFolder(_ context.Context, name string) error {
	if err := s.client.Create(name, nil).Wait(); err != nil {
		return fmt.Errorf("creating folder %s: %w", name, err)
	}
	return nil
}

// Release logs out and closes the connection
func (s *Session) Release(_ context.Context) error {
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("Logout failed", zap.Error(err))
	}
	return s.client.Close()
}

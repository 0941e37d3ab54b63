package imap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

var (
	_ core.Transport = (*Session)(nil)
	_ core.Transport = (*RobustTransport)(nil)
)

// DialFunc opens a fresh, logged-in session
type DialFunc func(ctx context.Context) (core.Transport, error)

// Backoff bounds the wait between reconnect attempts
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff waits 1s, 2s, 4s ... up to a minute between attempts
var DefaultBackoff = Backoff{Initial: time.Second, Max: time.Minute}

func (b Backoff) next(d time.Duration) time.Duration {
	if d <= 0 {
		return b.Initial
	}
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// RobustTransport connects lazily and survives dropped connections. A call
// failing with a transient error reconnects, re-selects the last folder
// and retries until it succeeds or ctx is done.
type RobustTransport struct {
	dial    DialFunc
	backoff Backoff
	logger  *zap.Logger
	name    string

	mu       sync.Mutex
	session  core.Transport
	folder   string
	selected bool
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRobustTransport wraps dial. name identifies the server in logs.
func NewRobustTransport(name string, dial DialFunc, backoff Backoff, logger *zap.Logger) *RobustTransport {
	return &RobustTransport{
		dial:    dial,
		backoff: backoff,
		logger:  logger,
		name:    name,
		sleep:   sleepCtx,
	}
}

// NewServerTransport returns a robust transport dialing cfg
func NewServerTransport(name string, cfg ServerConfig, backoff Backoff, logger *zap.Logger) *RobustTransport {
	dial := func(ctx context.Context) (core.Transport, error) {
		s, err := Dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewRobustTransport(name, dial, backoff, logger)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// connect returns the current session, dialing if needed. With reselect
// the last selected folder is opened again on a fresh session. Caller
// holds mu.
func (r *RobustTransport) connect(ctx context.Context, reselect bool) (core.Transport, error) {
	if r.session == nil {
		s, err := r.dial(ctx)
		if err != nil {
			return nil, err
		}
		r.session = s
		r.selected = false
	}
	if reselect && !r.selected && r.folder != "" {
		if err := r.session.SelectFolder(ctx, r.folder); err != nil {
			return nil, err
		}
		r.selected = true
	}
	return r.session, nil
}

func (r *RobustTransport) drop(ctx context.Context) {
	if r.session == nil {
		return
	}
	_ = r.session.Release(ctx)
	r.session = nil
	r.selected = false
}

// do runs op against a live session, retrying transient failures
func (r *RobustTransport) do(ctx context.Context, cmd string, reselect bool, op func(s core.Transport) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var wait time.Duration
	for attempt := 1; ; attempt++ {
		s, err := r.connect(ctx, reselect)
		if err == nil {
			err = op(s)
			if err == nil {
				return nil
			}
		}
		if !IsTransient(err) {
			return err
		}

		r.drop(ctx)
		wait = r.backoff.next(wait)
		r.logger.Warn("Mail server connection lost, reconnecting",
			zap.String("server", r.name),
			zap.String("command", cmd),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if serr := r.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%s on %s abandoned: %w", cmd, r.name, err)
		}
	}
}

// SelectFolder opens folder and remembers it for reconnects
func (r *RobustTransport) SelectFolder(ctx context.Context, folder string) error {
	return r.do(ctx, "select", false, func(s core.Transport) error {
		r.selected = false
		if err := s.SelectFolder(ctx, folder); err != nil {
			return err
		}
		r.folder = folder
		r.selected = true
		return nil
	})
}

func (r *RobustTransport) Search(ctx context.Context, criteria core.SearchCriteria) ([]uint32, error) {
	var uids []uint32
	err := r.do(ctx, "search", true, func(s core.Transport) error {
		var err error
		uids, err = s.Search(ctx, criteria)
		return err
	})
	return uids, err
}

func (r *RobustTransport) Fetch(ctx context.Context, uids []uint32, part core.FetchPart) ([]core.FetchedMessage, error) {
	var msgs []core.FetchedMessage
	err := r.do(ctx, "fetch", true, func(s core.Transport) error {
		var err error
		msgs, err = s.Fetch(ctx, uids, part)
		return err
	})
	return msgs, err
}

func (r *RobustTransport) Copy(ctx context.Context, uids []uint32, dest string) error {
	return r.do(ctx, "copy", true, func(s core.Transport) error {
		return s.Copy(ctx, uids, dest)
	})
}

func (r *RobustTransport) Delete(ctx context.Context, uids []uint32) error {
	return r.do(ctx, "delete", true, func(s core.Transport) error {
		return s.Delete(ctx, uids)
	})
}

func (r *RobustTransport) Expunge(ctx context.Context) error {
	return r.do(ctx, "expunge", true, func(s core.Transport) error {
		return s.Expunge(ctx)
	})
}

func (r *RobustTransport) RemoveFlags(ctx context.Context, uids []uint32, flags []string) error {
	return r.do(ctx, "store", true, func(s core.Transport) error {
		return s.RemoveFlags(ctx, uids, flags)
	})
}

func (r *RobustTransport) ListFolders(ctx context.Context) ([]string, error) {
	var names []string
	err := r.do(ctx, "list", false, func(s core.Transport) error {
		var err error
		names, err = s.ListFolders(ctx)
		return err
	})
	return names, err
}

func (r *RobustTransport) CreateFolder(ctx context.Context, name string) error {
	return r.do(ctx, "create", false, func(s core.Transport) error {
		return s.CreateFolder(ctx, name)
	})
}

// Release logs out the current session, if any. The selected folder is
// remembered so the next call reconnects where it left off.
func (r *RobustTransport) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	err := r.session.Release(ctx)
	r.session = nil
	r.selected = false
	r.logger.Debug("Released mail server connection", zap.String("server", r.name))
	return err
}

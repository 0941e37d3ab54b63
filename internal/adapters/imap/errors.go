package imap

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/emersion/go-imap/v2"
)

// ErrTransient marks a failure that a reconnect is expected to cure
var ErrTransient = errors.New("transient transport failure")

// IsTransient reports whether err looks like a dropped or timed out
// connection rather than a server refusing the command
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return imapErr.Type == imap.StatusResponseTypeBye
	}

	return strings.Contains(err.Error(), "use of closed network connection")
}

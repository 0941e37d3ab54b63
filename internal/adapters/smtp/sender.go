// Package smtp delivers rendered drafts through an SMTP submission server.
package smtp

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Security selects how the connection is protected
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// Config holds the submission server settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Security Security
	Timeout  time.Duration
}

// Sender implements core.MailSender. Each Send opens its own connection.
type Sender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSender creates a sender for cfg
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Security == "" {
		cfg.Security = SecurityStartTLS
		if cfg.Port == 465 {
			cfg.Security = SecurityTLS
		}
	}
	return &Sender{cfg: cfg, logger: logger}
}

func (s *Sender) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	switch s.cfg.Security {
	case SecurityTLS:
		return smtp.DialTLS(addr, nil)
	case SecurityStartTLS:
		return smtp.DialStartTLS(addr, nil)
	case SecurityNone:
		conn, err := net.DialTimeout("tcp", addr, s.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		c := smtp.NewClient(conn)
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
		if err := c.Hello(hostname); err != nil {
			c.Close()
			return nil, fmt.Errorf("EHLO failed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported smtp security mode: %s", s.cfg.Security)
	}
}

// Send delivers msg from sender to every recipient. Individual rejected
// recipients are logged; the send fails only when all are rejected.
func (s *Sender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	c, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer c.Close()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range to {
		if err := c.Rcpt(recipient, nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}

	s.logger.Debug("Sent message",
		zap.String("from", from),
		zap.Int("recipients", len(to)))
	return nil
}

// Close is a no-op; connections are not pooled
func (s *Sender) Close() error {
	return nil
}

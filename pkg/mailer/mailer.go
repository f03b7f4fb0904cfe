// Package mailer delivers plain-text notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// SMTP sends mail through an authenticated SMTP relay.
type SMTP struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New returns an SMTP sender, or a LogSender when no host is configured.
func New(cfg Config, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Warn("SMTP_HOST not set; notifications will only be logged")
		return &LogSender{logger: logger}
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}
}

// Send delivers msg. smtp.SendMail has no context support, so ctx is only
// checked before dialing.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("missing recipient")
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.FromAddress, []string{msg.To}, s.compose(msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTP) compose(msg Message, now time.Time) []byte {
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogSender records messages in the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("email (not sent, SMTP disabled)", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

package mailer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"time"

	"github.com/noah-isme/academic-approval-api/pkg/config"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Message is a single plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// SMTPMailer delivers mail through an SMTP relay using STARTTLS when offered.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string

	dial func(addr string) (smtpClient, error)
}

type smtpClient interface {
	Extension(ext string) (bool, string)
	StartTLS(cfg *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// NewSMTPMailer constructs a mailer from configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		dial:     dialSMTP,
	}
}

// IsConfigured reports whether a relay host is available.
func (m *SMTPMailer) IsConfigured() bool {
	return m != nil && m.host != ""
}

// Send delivers msg to every recipient in one SMTP transaction.
func (m *SMTPMailer) Send(msg Message) error {
	if !m.IsConfigured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	conn, err := m.dial(fmt.Sprintf("%s:%d", m.host, m.port))
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if ok, _ := conn.Extension("STARTTLS"); ok {
		if err := conn.StartTLS(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("start tls: %w", err)
		}
	}
	if m.username != "" {
		if err := conn.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := conn.Mail(m.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := conn.Rcpt(to); err != nil {
			return fmt.Errorf("set recipient %s: %w", to, err)
		}
	}
	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return conn.Quit()
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(msg.Subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func dialSMTP(addr string) (smtpClient, error) {
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

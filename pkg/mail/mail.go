// Package mail sends transactional email over SMTP.
//
//	err := mail.To("asha@example.com").
//	    Subject("Your order BE-20240501-1a2b3c4d").
//	    Template(tmpl, data).
//	    Send(ctx)
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/buddyengineerz/storefront/config"
	"github.com/buddyengineerz/storefront/pkg/logger"
)

// SMTP holds connection settings.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// FromConfig reads MAIL_* settings.
func FromConfig() SMTP {
	return SMTP{
		Host:     config.MailHost(),
		Port:     config.MailPort(),
		Username: config.MailUsername(),
		Password: config.MailPassword(),
		From:     config.MailFrom(),
		FromName: config.Get("MAIL_FROM_NAME", "Buddy Engineerz"),
	}
}

// Envelope is a rendered message ready to send.
type Envelope struct {
	To      []string
	CC      []string
	Subject string
	Body    string
	HTML    bool
}

// Mailer delivers an envelope.
type Mailer interface {
	Send(ctx context.Context, e Envelope) error
}

var (
	mu            sync.RWMutex
	defaultMailer Mailer = LogMailer{}
)

// SetMailer replaces the mailer used by Message.Send.
func SetMailer(m Mailer) {
	mu.Lock()
	defer mu.Unlock()
	defaultMailer = m
}

func Default() Mailer {
	mu.RLock()
	defer mu.RUnlock()
	return defaultMailer
}

// ------------------- Message builder -------------------

// Message is a fluent builder over Envelope.
type Message struct {
	env Envelope
	err error
}

func To(addresses ...string) *Message {
	return &Message{env: Envelope{To: addresses, HTML: true}}
}

func (m *Message) CC(addresses ...string) *Message {
	m.env.CC = append(m.env.CC, addresses...)
	return m
}

func (m *Message) Subject(s string) *Message {
	m.env.Subject = s
	return m
}

// Body sets an HTML body.
func (m *Message) Body(html string) *Message {
	m.env.Body = html
	m.env.HTML = true
	return m
}

func (m *Message) Text(text string) *Message {
	m.env.Body = text
	m.env.HTML = false
	return m
}

// Template renders tmpl with data as the HTML body. A render error is
// returned from Send.
func (m *Message) Template(tmpl *template.Template, data any) *Message {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		m.err = fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
		return m
	}
	return m.Body(buf.String())
}

// Envelope returns the built message.
func (m *Message) Envelope() (Envelope, error) { return m.env, m.err }

// Send delivers through the default mailer.
func (m *Message) Send(ctx context.Context) error {
	return m.SendWith(ctx, Default())
}

func (m *Message) SendWith(ctx context.Context, mailer Mailer) error {
	if m.err != nil {
		return m.err
	}
	if len(m.env.To) == 0 {
		return errors.New("mail: no recipients")
	}
	return mailer.Send(ctx, m.env)
}

// ------------------- SMTP -------------------

// SMTPMailer sends with net/smtp. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg     SMTP
	timeout time.Duration
}

func NewSMTP(cfg SMTP) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, timeout: 10 * time.Second}
}

func (s *SMTPMailer) Send(ctx context.Context, e Envelope) error {
	cfg := s.cfg
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: s.timeout}

	var conn net.Conn
	var err error
	if cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && cfg.Port != "465" {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := client.Mail(cfg.From); err != nil {
		return err
	}
	for _, rcpt := range append(append([]string{}, e.To...), e.CC...) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(BuildRaw(cfg, e)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// BuildRaw renders the RFC 5322 message.
func BuildRaw(cfg SMTP, e Envelope) []byte {
	contentType := "text/plain"
	if e.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", cfg.FromName, cfg.From)
	b.WriteString("To: " + strings.Join(e.To, ", ") + "\r\n")
	if len(e.CC) > 0 {
		b.WriteString("Cc: " + strings.Join(e.CC, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + e.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(e.Body)
	return []byte(b.String())
}

// LogMailer writes mail to the log instead of sending it. It is the
// default until an SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, e Envelope) error {
	logger.WithCtx(ctx).Info("mail: not sent (no SMTP configured)", "to", e.To, "subject", e.Subject)
	return nil
}

// Recorder keeps sent envelopes in memory.
type Recorder struct {
	mu   sync.Mutex
	Sent []Envelope
}

func (r *Recorder) Send(_ context.Context, e Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, e)
	return nil
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sent)
}

// Package notification delivers a notification over one or more channels.
//
//	type OrderShipped struct{ Order models.Order }
//	func (n OrderShipped) Via() []string { return []string{notification.Mail} }
//	func (n OrderShipped) ToMail() (notification.MailData, error) { ... }
//
//	err := notifier.Send(ctx, "asha@example.com", OrderShipped{Order: o})
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buddyengineerz/storefront/pkg/http"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/mail"
)

// Channel names.
const (
	Mail    = "mail"
	Webhook = "webhook"
)

type MailData struct {
	To      string // overrides the notifiable address when set
	Subject string
	Body    string // HTML
}

type WebhookData struct {
	URL     string // defaults to the notifier's webhook URL
	Payload any
	Headers map[string]string
}

// Notification lists the channels it should go out on.
type Notification interface {
	Via() []string
}

type Mailable interface {
	ToMail() (MailData, error)
}

type Webhookable interface {
	ToWebhook() (WebhookData, error)
}

// Notifier holds the channel backends.
type Notifier struct {
	Mailer     mail.Mailer
	WebhookURL string
	Client     *http.Client
	// WebhookAttempts is how often a webhook is tried inside one Send.
	WebhookAttempts int
}

func New(mailer mail.Mailer, webhookURL string) *Notifier {
	return &Notifier{
		Mailer:     mailer,
		WebhookURL: webhookURL,
		Client:     http.New(10 * time.Second),
	}
}

// Send tries every channel and joins the failures.
func (s *Notifier) Send(ctx context.Context, address string, n Notification) error {
	var errs []error
	for _, channel := range n.Via() {
		if err := s.dispatch(ctx, address, channel, n); err != nil {
			logger.WithCtx(ctx).Error("notification: channel failed", "channel", channel, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Notifier) dispatch(ctx context.Context, address, channel string, n Notification) error {
	switch channel {
	case Mail:
		m, ok := n.(Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		d, err := m.ToMail()
		if err != nil {
			return err
		}
		return s.sendMail(ctx, address, d)

	case Webhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Webhookable", n)
		}
		d, err := wh.ToWebhook()
		if err != nil {
			return err
		}
		return s.sendWebhook(ctx, d)

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

func (s *Notifier) sendMail(ctx context.Context, address string, d MailData) error {
	to := d.To
	if to == "" {
		to = address
	}
	if to == "" {
		return errors.New("notification: no mail recipient")
	}
	mailer := s.Mailer
	if mailer == nil {
		mailer = mail.Default()
	}
	return mail.To(to).Subject(d.Subject).Body(d.Body).SendWith(ctx, mailer)
}

// ErrNoWebhook is returned when neither the notification nor the notifier
// names a URL.
var ErrNoWebhook = errors.New("notification: webhook URL not configured")

func (s *Notifier) sendWebhook(ctx context.Context, d WebhookData) error {
	url := d.URL
	if url == "" {
		url = s.WebhookURL
	}
	if url == "" {
		return ErrNoWebhook
	}

	client := s.Client
	if client == nil {
		client = http.New(10 * time.Second)
	}
	resp, err := client.Post(url).
		Headers(d.Headers).
		Body(d.Payload).
		Retry(s.WebhookAttempts, time.Second).
		Send(ctx)
	if err != nil {
		return fmt.Errorf("notification: webhook send: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("notification: webhook: %w", err)
	}
	return nil
}

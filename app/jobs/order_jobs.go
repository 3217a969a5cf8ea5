// Package jobs holds the storefront's background jobs and the order event
// listeners that queue them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/notification"
	"github.com/buddyengineerz/storefront/pkg/queue"
)

// Mail templates a SendOrderMail can name.
const (
	MailPlaced    = "placed"
	MailShipped   = "shipped"
	MailDelivered = "delivered"
	MailCancelled = "cancelled"
)

// Deps are shared by every job instance the queue decodes.
type Deps struct {
	DB       *gorm.DB
	Notifier *notification.Notifier
}

// Register makes the order jobs decodable by m. Jobs built by m carry d.
func Register(m *queue.Manager, d Deps) {
	m.Register(func() queue.Job { return &SendOrderMail{deps: d} })
	m.Register(func() queue.Job { return &NotifyAdmins{deps: d} })
}

func loadOrder(ctx context.Context, db *gorm.DB, id uint) (models.Order, error) {
	var o models.Order
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Preload("User.Profile").
		First(&o, id).Error
	return o, apperr.FromDB(err)
}

// ─── Customer mail ───────────────────────────────────────────────────────────

// SendOrderMail mails the customer about an order.
type SendOrderMail struct {
	OrderID  uint   `json:"order_id"`
	Template string `json:"template"`

	deps Deps
}

func (j *SendOrderMail) Handle(ctx context.Context) error {
	o, err := loadOrder(ctx, j.deps.DB, j.OrderID)
	if apperr.Is(err, apperr.NotFound) {
		// the order is gone; retrying will not bring it back
		logger.WithCtx(ctx).Warn("jobs: order mail for missing order", "order_id", j.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	if o.User == nil || o.User.Email == "" {
		return fmt.Errorf("jobs: order %d has no customer email", o.ID)
	}
	return j.deps.Notifier.Send(ctx, o.User.Email, orderMail{order: o, template: j.Template})
}

var mailSubjects = map[string]string{
	MailPlaced:    "We received your order %s",
	MailShipped:   "Your order %s is on its way",
	MailDelivered: "Your order %s was delivered",
	MailCancelled: "Your order %s was cancelled",
}

var mailTemplates = template.Must(template.New("order").Parse(`
{{define "header"}}<p>Hi {{.Name}},</p>{{end}}
{{define "lines"}}<table>{{range .Lines}}<tr><td>{{.Name}}{{if .Variant}} ({{.Variant}}){{end}}</td><td>x{{.Quantity}}</td><td>₹{{.Total}}</td></tr>{{end}}</table>
<p>Total: <strong>₹{{.Total}}</strong></p>{{end}}
{{define "placed"}}{{template "header" .}}<p>Thanks for shopping with Buddy Engineerz. Order <strong>{{.Number}}</strong> is confirmed for {{.Method}}.</p>{{template "lines" .}}{{end}}
{{define "shipped"}}{{template "header" .}}<p>Order <strong>{{.Number}}</strong> has shipped to {{.City}}.</p>{{template "lines" .}}{{end}}
{{define "delivered"}}{{template "header" .}}<p>Order <strong>{{.Number}}</strong> was delivered. Enjoy the merch!</p>{{end}}
{{define "cancelled"}}{{template "header" .}}<p>Order <strong>{{.Number}}</strong> was cancelled{{if .Reason}}: {{.Reason}}{{end}}.</p>{{end}}
`))

type mailLine struct {
	Name     string
	Variant  string
	Quantity int
	Total    string
}

type mailData struct {
	Name   string
	Number string
	Method string
	City   string
	Reason string
	Total  string
	Lines  []mailLine
}

// orderMail is the notification behind SendOrderMail.
type orderMail struct {
	order    models.Order
	template string
}

func (orderMail) Via() []string { return []string{notification.Mail} }

func (n orderMail) ToMail() (notification.MailData, error) {
	subject, ok := mailSubjects[n.template]
	if !ok {
		return notification.MailData{}, fmt.Errorf("jobs: unknown order mail template %q", n.template)
	}

	o := n.order
	d := mailData{
		Name:   o.ShippingAddress.Name,
		Number: o.OrderNumber,
		Method: map[string]string{models.PaymentCOD: "cash on delivery", models.PaymentOnline: "online payment"}[o.PaymentMethod],
		City:   o.ShippingAddress.City,
		Reason: o.CancelReason,
		Total:  o.TotalAmount.StringFixed(2),
	}
	if o.User != nil && o.User.Profile != nil && o.User.Profile.FullName != "" {
		d.Name = o.User.Profile.FullName
	}
	for _, it := range o.Items {
		variant := strings.Trim(it.Size+" / "+it.Color, " /")
		d.Lines = append(d.Lines, mailLine{Name: it.ProductName, Variant: variant, Quantity: it.Quantity, Total: it.LineTotal.StringFixed(2)})
	}

	var body strings.Builder
	if err := mailTemplates.ExecuteTemplate(&body, n.template, d); err != nil {
		return notification.MailData{}, err
	}
	return notification.MailData{Subject: fmt.Sprintf(subject, o.OrderNumber), Body: body.String()}, nil
}

// ─── Admin webhook ───────────────────────────────────────────────────────────

// NotifyAdmins posts a new order to ADMIN_WEBHOOK_URL.
type NotifyAdmins struct {
	OrderID uint `json:"order_id"`

	deps Deps
}

func (j *NotifyAdmins) Handle(ctx context.Context) error {
	if j.deps.Notifier == nil || j.deps.Notifier.WebhookURL == "" {
		logger.WithCtx(ctx).Debug("jobs: admin webhook not configured", "order_id", j.OrderID)
		return nil
	}
	o, err := loadOrder(ctx, j.deps.DB, j.OrderID)
	if apperr.Is(err, apperr.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	err = j.deps.Notifier.Send(ctx, "", adminWebhook{order: o})
	if errors.Is(err, notification.ErrNoWebhook) {
		return nil
	}
	return err
}

type adminWebhook struct{ order models.Order }

func (adminWebhook) Via() []string { return []string{notification.Webhook} }

func (n adminWebhook) ToWebhook() (notification.WebhookData, error) {
	o := n.order
	email := ""
	if o.User != nil {
		email = o.User.Email
	}
	return notification.WebhookData{
		Headers: map[string]string{"X-Storefront-Event": "order.placed"},
		Payload: map[string]any{
			"event":          "order.placed",
			"order_id":       o.ID,
			"order_number":   o.OrderNumber,
			"customer_email": email,
			"payment_method": o.PaymentMethod,
			"item_count":     o.ItemCount(),
			"total_amount":   o.TotalAmount,
			"city":           o.ShippingAddress.City,
			"created_at":     o.CreatedAt,
		},
	}, nil
}

package jobs

import (
	"context"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/resources"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/event"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/queue"
)

// Dispatcher queues a job; *queue.Manager satisfies it.
type Dispatcher interface {
	Dispatch(job queue.Job) error
}

// Publisher pushes an event to the admin live feed; *ws.Hub satisfies it.
type Publisher interface {
	Publish(event string, data any)
}

// CacheInvalidator drops cached catalogue reads.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// Listeners reacts to order events. Any field may be nil.
type Listeners struct {
	Queue   Dispatcher
	Feed    Publisher
	Catalog CacheInvalidator
}

// customerMail lists the status changes a customer is mailed about.
var customerMail = map[models.OrderStatus]string{
	models.OrderShipped:   MailShipped,
	models.OrderDelivered: MailDelivered,
	models.OrderCancelled: MailCancelled,
}

// Register subscribes l to every order event.
func (l Listeners) Register() {
	event.Listen(event.OrderPlaced, l.orderPlaced)
	event.Listen(event.OrderStatusChanged, l.statusChanged)
	event.Listen(event.OrderPaymentChanged, l.paymentChanged)
}

func (l Listeners) orderPlaced(ctx context.Context, payload any) {
	ev, ok := payload.(services.OrderEvent)
	if !ok {
		return
	}
	l.dispatch(ctx, &SendOrderMail{OrderID: ev.Order.ID, Template: MailPlaced})
	l.dispatch(ctx, &NotifyAdmins{OrderID: ev.Order.ID})
	l.publish(event.OrderPlaced, ev)
	// stock moved, so cached featured lists are stale
	l.invalidate(ctx)
}

func (l Listeners) statusChanged(ctx context.Context, payload any) {
	ev, ok := payload.(services.OrderEvent)
	if !ok {
		return
	}
	if tmpl, ok := customerMail[models.OrderStatus(ev.To)]; ok {
		l.dispatch(ctx, &SendOrderMail{OrderID: ev.Order.ID, Template: tmpl})
	}
	l.publish(event.OrderStatusChanged, ev)
	if models.OrderStatus(ev.To) == models.OrderCancelled {
		l.invalidate(ctx)
	}
}

func (l Listeners) paymentChanged(_ context.Context, payload any) {
	if ev, ok := payload.(services.OrderEvent); ok {
		l.publish(event.OrderPaymentChanged, ev)
	}
}

func (l Listeners) dispatch(ctx context.Context, job queue.Job) {
	if l.Queue == nil {
		return
	}
	if err := l.Queue.Dispatch(job); err != nil {
		logger.WithCtx(ctx).Error("jobs: dispatch failed", "job", job, "error", err)
	}
}

func (l Listeners) publish(name string, ev services.OrderEvent) {
	if l.Feed == nil {
		return
	}
	data := resources.OrderEvent(ev.Order)
	if ev.From != "" {
		data["from"] = ev.From
		data["to"] = ev.To
	}
	l.Feed.Publish(name, data)
}

func (l Listeners) invalidate(ctx context.Context) {
	if l.Catalog != nil {
		l.Catalog.InvalidateCache(ctx)
	}
}

// Package event is an in-process dispatcher for domain events such as an
// order being placed. Listeners run synchronously with Fire, or on a
// bounded worker pool with FireAsync.
package event

import (
	"context"
	"sync"

	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/workerpool"
)

// Event names fired by the order service.
const (
	OrderPlaced         = "order.placed"
	OrderStatusChanged  = "order.status_changed"
	OrderPaymentChanged = "order.payment_changed"
)

// Handler receives an event payload. Handlers must not assume the
// request context is still alive.
type Handler func(ctx context.Context, payload any)

var (
	mu       sync.RWMutex
	handlers = map[string][]Handler{}
	pool     *workerpool.Pool
)

// Listen registers handler for name.
func Listen(name string, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[name] = append(handlers[name], handler)
}

func listeners(name string) []Handler {
	mu.RLock()
	defer mu.RUnlock()
	hs := make([]Handler, len(handlers[name]))
	copy(hs, handlers[name])
	return hs
}

// Fire calls every listener in registration order and returns when they
// are done.
func Fire(ctx context.Context, name string, payload any) {
	for _, h := range listeners(name) {
		h(ctx, payload)
	}
}

// UsePool routes FireAsync through p. Without a pool FireAsync falls back
// to Fire.
func UsePool(p *workerpool.Pool) {
	mu.Lock()
	defer mu.Unlock()
	pool = p
}

// FireAsync submits each listener to the pool and returns immediately.
// A full pool drops the listener with a warning instead of blocking the
// request.
func FireAsync(ctx context.Context, name string, payload any) {
	mu.RLock()
	p := pool
	mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	if p == nil {
		Fire(detached, name, payload)
		return
	}
	for _, h := range listeners(name) {
		h := h
		if err := p.Submit(func() { h(detached, payload) }); err != nil {
			logger.WithCtx(ctx).Warn("event: listener dropped", "event", name, "error", err)
		}
	}
}

// Flush removes all listeners.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	handlers = map[string][]Handler{}
}

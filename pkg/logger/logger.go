// Package logger provides the storefront's structured logger built on log/slog.
//
// Handlers log through the request-scoped logger so every line carries the
// request ID:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order placed", "order_number", o.OrderNumber, "total", o.TotalAmount)
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/buddyengineerz/storefront/config"
)

var L *slog.Logger

var (
	bootMu sync.Mutex
	sink   *MongoHandler
)

func init() {
	L = slog.New(stdoutHandler())
	slog.SetDefault(L)
}

func stdoutHandler() slog.Handler {
	switch config.AppEnv() {
	case "production", "prod":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// Boot attaches the MongoDB audit sink when LOG_MONGO_URI is configured.
// A sink that cannot connect is reported and skipped; stdout logging keeps working.
func Boot() {
	bootMu.Lock()
	defer bootMu.Unlock()

	uri := config.LogMongoURI()
	if uri == "" || sink != nil {
		return
	}

	h, err := NewMongoHandler(uri, config.LogMongoDB(), config.LogMongoCollection())
	if err != nil {
		L.Warn("logger: mongo sink disabled", "error", err)
		return
	}
	sink = h
	L = slog.New(NewMultiHandler(stdoutHandler(), h))
	slog.SetDefault(L)
	L.Info("logger: mongo sink attached", "collection", config.LogMongoCollection())
}

// Shutdown flushes and closes the Mongo sink if one was attached.
func Shutdown() {
	bootMu.Lock()
	defer bootMu.Unlock()
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

// ctxKey is the unexported key used to store a per-request *slog.Logger.
type ctxKey struct{}

// WithCtx returns the logger injected by the Logger middleware, or the base
// logger when none is present.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a request-tagged logger in ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

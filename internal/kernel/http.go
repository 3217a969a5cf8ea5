// Package kernel assembles the storefront's HTTP handler: the global
// middleware stack, the operational endpoints and the route table.
package kernel

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/buddyengineerz/storefront/pkg/grpc"
	"github.com/buddyengineerz/storefront/pkg/metrics"
	"github.com/buddyengineerz/storefront/pkg/middleware"
	"github.com/buddyengineerz/storefront/pkg/reqid"
	"github.com/buddyengineerz/storefront/pkg/response"
	"github.com/buddyengineerz/storefront/pkg/router"
)

// healthTimeout bounds one /healthz probe round.
const healthTimeout = 3 * time.Second

// Options configures the kernel.
type Options struct {
	// Routes mounts the application routes.
	Routes func(r *router.Router)
	// Checks back /healthz. The gRPC health service shares them.
	Checks grpc.Checks
	// StorageRoot is served at /storage when the local disk is in use.
	StorageRoot string
	CORSOrigins []string
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
}

// NewHTTP builds the router. Global middleware runs outermost first:
//
//  1. metrics, so latency covers everything below
//  2. recovery
//  3. request id, before anything logs
//  4. logger
//  5. CORS
//  6. per-IP rate limit
func NewHTTP(o Options) *router.Router {
	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.CORSFromOrigins(o.CORSOrigins)))
	if o.RateLimit > 0 {
		r.Use(middleware.RateLimit(o.RateLimit, time.Minute))
	}

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", Health(o.Checks))
	if o.StorageRoot != "" {
		r.Handle("/storage/*", "storage", http.StripPrefix("/storage/", noListing(http.FileServer(http.Dir(o.StorageRoot)))))
	}

	if o.Routes != nil {
		o.Routes(r)
	}
	return r
}

// Health runs every check and answers 200 when all pass, 503 otherwise.
// The body names each dependency with "ok" or its error.
func Health(checks grpc.Checks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		results := make(map[string]string, len(checks))
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		msg := "healthy"
		if status != http.StatusOK {
			msg = "unhealthy"
		}
		response.Write(w, status, response.Envelope{Status: status, Message: msg, Data: results})
	}
}

// noListing hides directory indexes under /storage.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			response.Error(w, http.StatusNotFound, "Not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package response writes the storefront's JSON envelope from plain
// http.Handlers (middleware, health checks). Handlers built on pkg/ctx use
// the equivalent methods on *ctx.Context.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/logger"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func Write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func Success(w http.ResponseWriter, data interface{}) {
	Write(w, http.StatusOK, Envelope{Status: http.StatusOK, Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, Envelope{Status: status, Message: message})
}

// Fail writes err using its apperr kind. Internal errors are logged with
// the request logger and reported to the client without detail.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
	}
	msg, fields := apperr.Public(err)
	body := Envelope{Status: status, Message: msg}
	if len(fields) > 0 {
		body.Errors = fields
	}
	Write(w, status, body)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

func Forbidden(w http.ResponseWriter) {
	Error(w, http.StatusForbidden, "Forbidden")
}

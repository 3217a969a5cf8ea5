// Package apperr is the storefront's error taxonomy. Services return
// *Error values (or wrap driver errors via FromDB); the HTTP layer maps a
// Kind to a status code in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Validation
	Conflict
	Unauthorized
	Forbidden
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error carries a Kind, a client-safe message, optional per-field messages
// and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// Invalid builds a Validation error from a field → message map.
func Invalid(fields map[string]string) *Error {
	return &Error{Kind: Validation, Message: "Validation failed", Fields: fields}
}

// Field is a Validation error for a single field.
func Field(field, message string) *Error {
	return Invalid(map[string]string{field: message})
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Postgres SQLSTATE codes the storefront reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeUndefinedTable      = "42P01"
	codeInsufficientPriv    = "42501"
)

// FromDB classifies a database error. Nil stays nil and *Error values pass
// through untouched.
func FromDB(err error) error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(NotFound, "Record not found", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Wrap(Conflict, "Record already exists", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return Wrap(Conflict, "Record already exists", err)
		case codeForeignKeyViolation:
			return Wrap(Validation, "Referenced record does not exist", err)
		case codeCheckViolation, codeNotNullViolation:
			return Wrap(Validation, "Invalid value for "+constraintSubject(pgErr), err)
		case codeUndefinedTable:
			return Wrap(Unavailable, "Database schema missing; run migrations", err)
		case codeInsufficientPriv:
			return Wrap(Forbidden, "Permission denied", err)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "PGRST301"), strings.Contains(strings.ToLower(msg), "jwt expired"):
		return Wrap(Unauthorized, "Session expired; sign in again", err)
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "Duplicate entry"):
		return Wrap(Conflict, "Record already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return Wrap(Validation, "Referenced record does not exist", err)
	case strings.Contains(msg, "no such table"):
		return Wrap(Unavailable, "Database schema missing; run migrations", err)
	}

	return Wrap(Internal, "Internal server error", err)
}

func constraintSubject(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "field"
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusUnprocessableEntity
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the client-safe message and field errors for err.
// Internal errors never leak their cause.
func Public(err error) (string, map[string]string) {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message, e.Fields
	}
	return "Internal server error", nil
}

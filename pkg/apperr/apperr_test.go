package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestFromDB_Postgres(t *testing.T) {
	cases := []struct {
		code   string
		kind   Kind
		status int
	}{
		{"23505", Conflict, http.StatusConflict},
		{"23503", Validation, http.StatusUnprocessableEntity},
		{"23514", Validation, http.StatusUnprocessableEntity},
		{"42P01", Unavailable, http.StatusServiceUnavailable},
		{"42501", Forbidden, http.StatusForbidden},
		{"XX000", Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := FromDB(fmt.Errorf("insert: %w", &pgconn.PgError{Code: tc.code}))
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.status, Status(err))
		})
	}
}

func TestFromDB_MissingSchemaMessage(t *testing.T) {
	err := FromDB(&pgconn.PgError{Code: "42P01", Message: `relation "products" does not exist`})
	msg, _ := Public(err)
	assert.Contains(t, msg, "run migrations")
}

func TestFromDB_SessionExpired(t *testing.T) {
	err := FromDB(errors.New("PGRST301: JWT expired"))
	assert.Equal(t, Unauthorized, KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, Status(err))
}

func TestFromDB_GormAndSQLite(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(FromDB(gorm.ErrRecordNotFound)))
	assert.Equal(t, Conflict, KindOf(FromDB(gorm.ErrDuplicatedKey)))
	assert.Equal(t, Conflict, KindOf(FromDB(errors.New("UNIQUE constraint failed: users.email"))))
	assert.Nil(t, FromDB(nil))
}

func TestFromDB_PassesThroughAppErrors(t *testing.T) {
	orig := Conflictf("only %d left", 2)
	assert.Same(t, orig, FromDB(orig))
}

func TestPublic_HidesInternalCause(t *testing.T) {
	msg, fields := Public(errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	assert.Equal(t, "Internal server error", msg)
	assert.Nil(t, fields)
}

func TestInvalid_CarriesFields(t *testing.T) {
	err := Field("pincode", "pincode must be exactly 6 digits")
	msg, fields := Public(err)
	assert.Equal(t, "Validation failed", msg)
	assert.Equal(t, "pincode must be exactly 6 digits", fields["pincode"])
	assert.Equal(t, http.StatusUnprocessableEntity, Status(err))
}

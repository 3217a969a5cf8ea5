// Package repositories wraps GORM queries for the storefront models.
// Every error leaving this package has been classified by apperr.
package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/pkg/apperr"
)

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.NotFound, msg, err)
	}
	return apperr.FromDB(err)
}

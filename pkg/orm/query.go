// Package orm holds GORM helpers shared by the repositories: pagination
// and cache-aside reads.
package orm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/pkg/cache"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination is the metadata returned alongside a page of items.
type Pagination struct {
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
}

// Page is a requested page; Normalize clamps it to sane bounds.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

// Paginate counts the rows matched by q, then loads the requested page into
// dest. q may already carry Where/Order/Preload clauses.
func Paginate(q *gorm.DB, p Page, dest interface{}) (Pagination, error) {
	p = p.Normalize()
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Pagination{}, err
	}

	if err := q.Offset(p.Offset()).Limit(p.PerPage).Find(dest).Error; err != nil {
		return Pagination{}, err
	}

	last := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if last < 1 {
		last = 1
	}
	return Pagination{Total: total, PerPage: p.PerPage, CurrentPage: p.Number, LastPage: last}, nil
}

// Remember reads key from store into dest, or runs load, caches its result
// and returns it. A nil store disables caching.
func Remember(ctx context.Context, store cache.Store, key string, ttl time.Duration, dest interface{}, load func() error) error {
	if store != nil && store.Get(ctx, key, dest) {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	if store != nil {
		_ = store.Set(ctx, key, dest, ttl)
	}
	return nil
}

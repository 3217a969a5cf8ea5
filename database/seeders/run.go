// Package seeders loads demo catalogue data.
//
//	func init() { seeders.Register("categories", seedCategories) }
//
// Run with `buddy seed`. Seeders are idempotent: rows are matched on their
// slug and only created when missing.
package seeders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gorm.io/gorm"
)

type SeederFunc func(ctx context.Context, db *gorm.DB) error

type entry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []entry
)

func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, entry{name: name, fn: fn})
}

// RunAll runs seeders in registration order and stops at the first error.
// When only is non-empty, just that seeder runs.
func RunAll(ctx context.Context, db *gorm.DB, out io.Writer, only string) error {
	mu.Lock()
	current := make([]entry, len(entries))
	copy(current, entries)
	mu.Unlock()

	ran := 0
	for _, e := range current {
		if only != "" && e.name != only {
			continue
		}
		fmt.Fprintf(out, "  Seeding: %s ... ", e.name)
		if err := e.fn(ctx, db.WithContext(ctx)); err != nil {
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		fmt.Fprintln(out, "done")
		ran++
	}
	if only != "" && ran == 0 {
		return fmt.Errorf("seeder %q is not registered", only)
	}
	return nil
}

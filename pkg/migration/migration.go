// Package migration runs versioned schema changes and records them in
// schema_migrations.
//
//	func init() {
//	    migration.Register("20240101000000_create_catalog_tables", &CreateCatalogTables{})
//	}
//
// From the CLI:
//
//	buddy migrate
//	buddy migrate:rollback
//	buddy migrate:status
package migration

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

// Migration is a reversible schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

type registered struct {
	name string
	m    Migration
}

var registry []registered

// Register adds a migration. Names are timestamp-prefixed and run in
// lexical order.
func Register(name string, m Migration) {
	registry = append(registry, registered{name: name, m: m})
}

// Runner applies registered migrations to a database.
type Runner struct {
	db  *gorm.DB
	out io.Writer
}

// New returns a runner that reports progress to out.
func New(db *gorm.DB, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out}
}

func (r *Runner) ensureTable() error {
	if err := r.db.AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) pending() ([]registered, error) {
	var ran []record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(ran))
	for _, rec := range ran {
		done[rec.Name] = true
	}

	var out []registered
	for _, reg := range registry {
		if !done[reg.name] {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// Run applies every pending migration as one batch. Each migration and
// its bookkeeping row commit together.
func (r *Runner) Run() (int, error) {
	if err := r.ensureTable(); err != nil {
		return 0, err
	}
	todo, err := r.pending()
	if err != nil {
		return 0, fmt.Errorf("migration: fetch pending: %w", err)
	}
	if len(todo) == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return 0, nil
	}

	batch := r.lastBatch() + 1
	for _, reg := range todo {
		fmt.Fprintf(r.out, "  Migrating: %s\n", reg.name)
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := reg.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: reg.name, Batch: batch}).Error
		})
		if err != nil {
			return 0, fmt.Errorf("migration: %s up: %w", reg.name, err)
		}
		fmt.Fprintf(r.out, "  Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(todo), "batch", batch)
	return len(todo), nil
}

// Rollback reverts the most recent batch, newest first.
func (r *Runner) Rollback() (int, error) {
	if err := r.ensureTable(); err != nil {
		return 0, err
	}
	batch := r.lastBatch()
	if batch == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return 0, nil
	}

	var records []record
	if err := r.db.Where("batch = ?", batch).Order("id desc").Find(&records).Error; err != nil {
		return 0, err
	}

	byName := make(map[string]Migration, len(registry))
	for _, reg := range registry {
		byName[reg.name] = reg.m
	}

	for _, rec := range records {
		m, ok := byName[rec.Name]
		if !ok {
			return 0, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}
		fmt.Fprintf(r.out, "  Rolling back: %s\n", rec.Name)
		rec := rec
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&rec).Error
		})
		if err != nil {
			return 0, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
	}
	logger.Info("migration: rolled back", "batch", batch, "count", len(records))
	return len(records), nil
}

// Status is one row of migrate:status.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) Status() ([]Status, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	var ran []record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]record, len(ran))
	for _, rec := range ran {
		byName[rec.Name] = rec
	}

	names := make([]string, 0, len(registry))
	for _, reg := range registry {
		names = append(names, reg.name)
	}
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, n := range names {
		rec, ok := byName[n]
		out = append(out, Status{Name: n, Ran: ok, Batch: rec.Batch})
	}
	return out, nil
}

func (r *Runner) lastBatch() int {
	var last struct{ Max int }
	r.db.Model(&record{}).Select("COALESCE(MAX(batch), 0) AS max").Scan(&last)
	return last.Max
}

// Package schedule runs periodic maintenance tasks.
//
//	s := schedule.New()
//	s.Hourly().Name("orders:sweep-stale").WithoutOverlapping().Run(sweep)
//	s.Cron("30 2 * * *").Name("nightly").Run(task)
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

// Task is a scheduled unit of work.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	interval  time.Duration
	cronExpr  string
	task      Task
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler holds registered entries.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

func New() *Scheduler { return &Scheduler{} }

// Builder configures an entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

func (s *Scheduler) Every(d time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: d}}
}

func (s *Scheduler) EveryMinute() *Builder { return s.Every(time.Minute) }
func (s *Scheduler) Hourly() *Builder      { return s.Every(time.Hour) }
func (s *Scheduler) Daily() *Builder       { return s.Every(24 * time.Hour) }

// Cron uses a 5-field expression: minute hour day-of-month month weekday.
// Fields accept *, N, */N, A-B and comma lists of those.
func (s *Scheduler) Cron(expr string) *Builder {
	return &Builder{s: s, e: &entry{cronExpr: expr}}
}

func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// WithoutOverlapping skips a run while the previous one is still going.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Run registers fn.
func (b *Builder) Run(fn Task) {
	b.e.task = fn
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start ticks every second until ctx is done. Interval tasks run on the
// first tick.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		logger.Info("schedule: scheduler started", "tasks", len(s.List()))
		for {
			select {
			case <-ctx.Done():
				logger.Info("schedule: scheduler stopped")
				return
			case now := <-ticker.C:
				s.dispatchDue(ctx, now, false)
			}
		}
	}()
}

// Wait blocks until in-flight runs finish.
func (s *Scheduler) Wait() { s.wg.Wait() }

// RunDue runs every due task synchronously and returns the ids it ran.
// With force, every task runs regardless of its schedule.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time, force bool) []string {
	ran := s.dispatchDue(ctx, now, force)
	s.wg.Wait()
	return ran
}

func (s *Scheduler) snapshot() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time, force bool) []string {
	var ran []string
	for _, e := range s.snapshot() {
		if force || e.isDue(now) {
			if s.dispatch(ctx, e, now) {
				ran = append(ran, e.id)
			}
		}
	}
	return ran
}

func (e *entry) isDue(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cronExpr != "" {
		// one run per matching minute
		return matchCron(e.cronExpr, now) && now.Truncate(time.Minute).After(e.lastRun.Truncate(time.Minute))
	}
	return e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.interval
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) bool {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return false
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()

		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "id", e.id, "error", err)
			return
		}
		logger.Info("schedule: task finished", "id", e.id, "duration_ms", time.Since(start).Milliseconds())
	}()
	return true
}

// List describes registered entries for the CLI.
func (s *Scheduler) List() []string {
	entries := s.snapshot()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		freq := e.cronExpr
		if freq == "" {
			freq = "every " + e.interval.String()
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}

// ------------------- cron matching -------------------

func matchCron(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	vals := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, f := range fields {
		if !matchField(f, vals[i]) {
			return false
		}
	}
	return true
}

func matchField(field string, val int) bool {
	for _, part := range strings.Split(field, ",") {
		if matchPart(part, val) {
			return true
		}
	}
	return false
}

func matchPart(part string, val int) bool {
	switch {
	case part == "*":
		return true
	case strings.HasPrefix(part, "*/"):
		step, err := strconv.Atoi(part[2:])
		return err == nil && step > 0 && val%step == 0
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		a, err1 := strconv.Atoi(lo)
		b, err2 := strconv.Atoi(hi)
		return err1 == nil && err2 == nil && val >= a && val <= b
	default:
		n, err := strconv.Atoi(part)
		return err == nil && n == val
	}
}

// Package queue runs background jobs such as order confirmation mail and
// admin notifications outside the request path.
//
//	type SendOrderMail struct{ OrderID uint }
//	func (j *SendOrderMail) Handle(ctx context.Context) error { ... }
//
//	m := queue.NewManager(queue.NewMemoryDriver())
//	m.Register(func() queue.Job { return &SendOrderMail{} })
//	m.Dispatch(&SendOrderMail{OrderID: o.ID})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/metrics"
)

// Job is a unit of background work. It must be JSON-serialisable.
type Job interface {
	Handle(ctx context.Context) error
}

// FailedJob is the in-memory record of a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver is implemented by drivers that can hold a job until a
// later time without a goroutine per job.
type DelayedDriver interface {
	PushDelayed(payload []byte, delay time.Duration) error
}

// Manager owns a driver, the job registry and the failure log.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	timeout  time.Duration
	store    FailedStore
}

// NewManager builds a manager on d with three attempts per job.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
		timeout:  30 * time.Second,
	}
}

func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = d
}

// SetRetry sets attempts per job and the linear backoff step between them.
func (m *Manager) SetRetry(attempts int, backoff time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempts < 1 {
		attempts = 1
	}
	m.maxRetry = attempts
	m.backoff = backoff
}

// Register makes a job type decodable. The registry key is the job's Go
// type name, so one factory per concrete type. The factory must return a
// pointer so payloads can be decoded into it; Register panics otherwise.
func (m *Manager) Register(factory func() Job) {
	j := factory()
	if v := reflect.ValueOf(j); v.Kind() != reflect.Pointer || v.IsNil() {
		panic(fmt.Sprintf("queue: factory for %T must return a non-nil pointer", j))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[typeName(j)] = factory
}

func typeName(j Job) string { return fmt.Sprintf("%T", j) }

type envelope struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

func (m *Manager) Dispatch(job Job) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(env)
}

// DispatchAfter uses the driver's delayed set when it has one; otherwise a
// timer pushes the job later, which does not survive a restart.
func (m *Manager) DispatchAfter(job Job, delay time.Duration) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	d := m.currentDriver()
	if dd, ok := d.(DelayedDriver); ok {
		return dd.PushDelayed(env, delay)
	}
	time.AfterFunc(delay, func() {
		if err := d.Push(env); err != nil {
			logger.Error("queue: delayed dispatch failed", "type", typeName(job), "error", err)
		}
	})
	return nil
}

func encode(job Job) ([]byte, error) {
	name := typeName(job)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", name, err)
	}
	env, err := json.Marshal(envelope{Type: name, Payload: payload, QueuedAt: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// StartWorkers launches n workers and returns a WaitGroup that completes
// once they have all stopped.
func (m *Manager) StartWorkers(ctx context.Context, n int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
	return &wg
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.currentDriver().Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		m.persistUndecodable(ctx, "unknown", raw, fmt.Errorf("bad envelope: %w", err))
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Error("queue: unregistered job type", "type", env.Type)
		m.persistUndecodable(ctx, env.Type, env.Payload, fmt.Errorf("unregistered job type %q", env.Type))
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		m.persistUndecodable(ctx, env.Type, env.Payload, fmt.Errorf("unmarshal payload: %w", err))
		return
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, name string) {
	m.mu.RLock()
	attempts, backoff, timeout := m.maxRetry, m.backoff, m.timeout
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = safeHandle(jobCtx, job)
		cancel()
		if lastErr == nil {
			metrics.RecordQueueJob(name, "success", start)
			logger.Debug("queue: job processed", "type", name, "attempt", attempt)
			return
		}
		logger.Warn("queue: job failed", "type", name, "attempt", attempt, "error", lastErr)
		if attempt < attempts && !sleep(ctx, time.Duration(attempt)*backoff) {
			break
		}
	}

	metrics.RecordQueueJob(name, "failed", start)
	m.persistFailed(ctx, job, name, lastErr, attempts)
	logger.Error("queue: job exhausted retries", "type", name, "error", lastErr)
}

func safeHandle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Handle(ctx)
}

// sleep waits d or until ctx is done; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FailedJobs returns a snapshot of jobs that exhausted their retries in
// this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

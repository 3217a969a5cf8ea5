// Package workerpool is a bounded goroutine pool used for fire-and-forget
// work such as async event listeners.
//
//	pool := workerpool.New("events", 8)
//	defer pool.Shutdown()
//
//	if err := pool.Submit(notifyAdmins); errors.Is(err, workerpool.ErrPoolFull) {
//	    // shed the work
//	}
package workerpool

import (
	"errors"
	"sync"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	name   string
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New starts size workers. The task buffer holds twice as many tasks as
// there are workers.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{name: name, tasks: make(chan func(), size*2)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit never blocks.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until the task is queued.
func (p *Pool) SubmitWait(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
	}
}

func (p *Pool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "pool", p.name, "panic", r)
		}
	}()
	task()
}

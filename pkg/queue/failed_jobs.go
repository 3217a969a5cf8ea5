package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

// FailedJobRecord is a row in failed_jobs. The table is created by the
// migrations.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"job_type"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"not null;index" json:"failed_at"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// FailedStore persists exhausted jobs.
type FailedStore interface {
	SaveFailed(ctx context.Context, rec *FailedJobRecord) error
}

// GormFailedStore writes failures to failed_jobs.
type GormFailedStore struct {
	DB *gorm.DB
}

func (s GormFailedStore) SaveFailed(ctx context.Context, rec *FailedJobRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (m *Manager) UseStore(s FailedStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = s
}

func (m *Manager) persistFailed(ctx context.Context, job Job, name string, lastErr error, attempts int) {
	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}
	m.saveFailed(ctx, FailedJob{Type: name, Job: job, Err: lastErr, FailedAt: time.Now(), Attempts: attempts}, payload)
}

// persistUndecodable records a payload that never became a job: a bad
// envelope or an unregistered type. It is kept verbatim for replay.
func (m *Manager) persistUndecodable(ctx context.Context, name string, raw []byte, cause error) {
	m.saveFailed(ctx, FailedJob{Type: name, Err: cause, FailedAt: time.Now()}, raw)
}

func (m *Manager) saveFailed(ctx context.Context, f FailedJob, payload []byte) {
	m.mu.Lock()
	m.failed = append(m.failed, f)
	store := m.store
	m.mu.Unlock()

	if store == nil {
		return
	}
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	rec := &FailedJobRecord{
		JobType:  f.Type,
		Payload:  string(payload),
		Error:    errText,
		Attempts: f.Attempts,
		FailedAt: f.FailedAt,
	}
	// the worker ctx may already be cancelled during shutdown
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.SaveFailed(saveCtx, rec); err != nil {
		logger.Error("queue: persist failed job", "type", f.Type, "error", err)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/siva27neelam/story-telling/internal/stats"
)

// RunRecord is the persisted summary of the most recent run of a job.
type RunRecord struct {
	Job        string         `json:"job"`
	Trigger    string         `json:"trigger"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Covers     stats.RunStats `json:"covers"`
	Pages      stats.RunStats `json:"pages"`
	Total      stats.RunStats `json:"total"`
	Error      string         `json:"error,omitempty"`
}

func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusStore keeps the last run of each job.
type StatusStore interface {
	Save(ctx context.Context, rec RunRecord) error
	Last(ctx context.Context, job string) (*RunRecord, error)
}

type memoryStatusStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemoryStatusStore keeps run records in process memory.
func NewMemoryStatusStore() StatusStore {
	return &memoryStatusStore{runs: map[string]RunRecord{}}
}

func (m *memoryStatusStore) Save(_ context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[rec.Job] = rec
	return nil
}

func (m *memoryStatusStore) Last(_ context.Context, job string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.runs[job]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type statusKV interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	JobStatusKey(job string) string
}

type redisStatusStore struct {
	kv statusKV
}

// NewRedisStatusStore shares run records between every process pointed at
// the same redis.
func NewRedisStatusStore(kv statusKV) StatusStore {
	return &redisStatusStore{kv: kv}
}

func (r *redisStatusStore) Save(ctx context.Context, rec RunRecord) error {
	if err := r.kv.SetJSON(ctx, r.kv.JobStatusKey(rec.Job), rec, 0); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}
	return nil
}

func (r *redisStatusStore) Last(ctx context.Context, job string) (*RunRecord, error) {
	var rec RunRecord
	found, err := r.kv.GetJSON(ctx, r.kv.JobStatusKey(job), &rec)
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

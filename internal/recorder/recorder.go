// Package recorder keeps an append-only, bounded history of executed requests
// for observability and debugging. The buffer is held newest-first in memory
// and mirrored to a durable Store after every mutation.
package recorder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status marks the outcome of an execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record captures one routed request: what went in, what came out, and how
// long it took. Raw error detail stays here for operator inspection; callers
// only ever see the structured result.
type Record struct {
	ID          string    `json:"id"`
	RequestType string    `json:"request_type"`
	Input       any       `json:"input"`
	Output      any       `json:"output,omitempty"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LatencyMs   int64     `json:"latency_ms"`
	Cached      bool      `json:"cached"`
	Error       string    `json:"error,omitempty"`
}

// Store is the injected persistence collaborator. The recorder treats it as
// save-blob/load-blob; schema and durability are the store's business.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
	Close() error
}

// NopStore discards everything. Useful for tests and pure in-memory embedding.
type NopStore struct{}

func (NopStore) Load() ([]Record, error) { return nil, nil }
func (NopStore) Save([]Record) error     { return nil }
func (NopStore) Close() error            { return nil }

// DefaultCapacity bounds the history when no capacity is configured.
const DefaultCapacity = 100

// Recorder is a fixed-capacity ring buffer of Records, newest first.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	records  []Record
	capacity int
	store    Store
	logger   *slog.Logger
}

// New creates a Recorder, seeding the buffer from the store.
func New(capacity int, store Store, logger *slog.Logger) (*Recorder, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if store == nil {
		store = NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(loaded) > capacity {
		loaded = loaded[:capacity]
	}

	return &Recorder{
		records:  loaded,
		capacity: capacity,
		store:    store,
		logger:   logger,
	}, nil
}

// Record appends an entry at the front, dropping the oldest when capacity is
// exceeded, then persists the buffer. A missing ID or timestamp is filled in.
// Persistence failures are logged, not propagated: history must never fail a
// route. The save runs under the lock so the durable copy is written in the
// same order as the buffer mutations.
func (r *Recorder) Record(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append([]Record{rec}, r.records...)
	if len(r.records) > r.capacity {
		r.records = r.records[:r.capacity]
	}
	snapshot := make([]Record, len(r.records))
	copy(snapshot, r.records)

	if err := r.store.Save(snapshot); err != nil {
		r.logger.Warn("failed to persist execution history", "error", err)
	}
}

// List returns the history, most recent first. A non-empty filterType keeps
// only records of that request type, preserving recency order.
func (r *Recorder) List(filterType string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filterType != "" && rec.RequestType != filterType {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Len returns the number of buffered records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Clear empties the buffer and persists the empty state.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = nil
	if err := r.store.Save(nil); err != nil {
		r.logger.Warn("failed to persist cleared history", "error", err)
	}
}

// Close releases the underlying store.
func (r *Recorder) Close() error {
	return r.store.Close()
}

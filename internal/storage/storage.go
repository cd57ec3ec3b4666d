package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

var bucketName = []byte("runs")

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// Run is the operational record of one research request.
// It is never fed back into a conversation.
type Run struct {
	ID         string       `json:"id"`
	Mode       string       `json:"mode"`
	Query      string       `json:"query"`
	Model      string       `json:"model,omitempty"`
	Status     string       `json:"status"`
	Searches   []string     `json:"searches,omitempty"`
	Sources    []string     `json:"sources,omitempty"`
	Usage      models.Usage `json:"usage"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
}

// NewRun starts a run record
func NewRun(id, mode, query, model string) *Run {
	return &Run{
		ID:        id,
		Mode:      mode,
		Query:     query,
		Model:     model,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Observe folds a stream event into the record
func (r *Run) Observe(ev models.Event) {
	switch ev.Type {
	case models.EventLog:
		if sl, ok := ev.Content.(models.SearchLog); ok {
			r.Searches = append(r.Searches, sl.Query)
		}
	case models.EventTokenUsage:
		if u, ok := ev.Content.(models.Usage); ok {
			r.Usage.Add(u)
		}
	case models.EventError:
		r.Status = StatusFailed
		r.Error = fmt.Sprint(ev.Content)
	case models.EventOutput:
		if r.Status == StatusRunning {
			r.Status = StatusCompleted
		}
	}
}

// AddSources records the pages a retrieval pass read, each URL once
func (r *Run) AddSources(urls []string) {
	for _, u := range urls {
		if !slices.Contains(r.Sources, u) {
			r.Sources = append(r.Sources, u)
		}
	}
}

// Finish stamps the duration. A run that never produced output or an error
// was cut short by the client.
func (r *Run) Finish() {
	r.DurationMS = time.Since(r.StartedAt).Milliseconds()
	if r.Status == StatusRunning {
		r.Status = StatusAborted
	}
}

// RunStore persists run records using BBolt
type RunStore struct {
	db *bbolt.DB
}

// NewRunStore creates a new run store with the given database path
func NewRunStore(path string) (*RunStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	// Create bucket if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("run store initialized", zap.String("path", path))
	return &RunStore{db: db}, nil
}

// Store saves a run under its ID
func (s *RunStore) Store(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(run.ID), data)
	})
}

// Get retrieves a run by ID
// Returns the run and true if found, nil and false otherwise
func (s *RunStore) Get(id string) (*Run, bool) {
	var run *Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		run = &Run{}
		return json.Unmarshal(data, run)
	})

	if err != nil || run == nil {
		return nil, false
	}

	return run, true
}

// Recent returns up to limit runs, newest first. IDs are time-ordered.
func (s *RunStore) Recent(limit int) ([]*Run, error) {
	var runs []*Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			run := &Run{}
			if err := json.Unmarshal(v, run); err != nil {
				return fmt.Errorf("corrupt run %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// Delete removes a run by ID
func (s *RunStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Delete([]byte(id))
	})
}

// Close closes the database connection
func (s *RunStore) Close() error {
	return s.db.Close()
}

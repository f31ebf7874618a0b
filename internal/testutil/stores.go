// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

// ─── Record store ────────────────────────────────────────────────────────────

// MemRecordStore is an in-memory dedup.Store with the same conditional-insert
// semantics as the Postgres store.
type MemRecordStore struct {
	mu      sync.Mutex
	records map[string]model.ScholarshipRecord

	// InsertErr, when set, fails every Insert.
	InsertErr error
	// ExistsCalls counts store existence queries.
	ExistsCalls int
}

// NewMemRecordStore returns an empty store.
func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{records: make(map[string]model.ScholarshipRecord)}
}

func recordKey(id, deadline string) string { return id + "|" + deadline }

func (s *MemRecordStore) Exists(_ context.Context, id, deadline string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExistsCalls++
	_, ok := s.records[recordKey(id, deadline)]
	return ok, nil
}

func (s *MemRecordStore) Insert(_ context.Context, rec model.ScholarshipRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return false, s.InsertErr
	}
	k := recordKey(rec.ID, rec.Deadline)
	if _, ok := s.records[k]; ok {
		return false, nil
	}
	s.records[k] = rec
	return true, nil
}

func (s *MemRecordStore) Touch(_ context.Context, id, deadline string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey(id, deadline)
	rec, ok := s.records[k]
	if !ok {
		return false, nil
	}
	rec.UpdatedAt = at
	s.records[k] = rec
	return true, nil
}

// Delete removes a record, simulating an out-of-band deletion.
func (s *MemRecordStore) Delete(id, deadline string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey(id, deadline))
}

// Get returns a stored record.
func (s *MemRecordStore) Get(id, deadline string) (model.ScholarshipRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(id, deadline)]
	return rec, ok
}

// Len returns the number of stored records.
func (s *MemRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ─── Job store ───────────────────────────────────────────────────────────────

// MemJobStore is an in-memory tracker.Store.
type MemJobStore struct {
	mu   sync.Mutex
	jobs map[string]model.JobRecord

	// UpsertErr, when set, fails every Upsert.
	UpsertErr error
}

// NewMemJobStore returns an empty store.
func NewMemJobStore() *MemJobStore {
	return &MemJobStore{jobs: make(map[string]model.JobRecord)}
}

func (s *MemJobStore) Upsert(_ context.Context, rec *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	if cur, ok := s.jobs[rec.JobID]; ok && cur.Status.Terminal() && cur.Status != rec.Status {
		return nil
	}
	cp := *rec
	cp.Errors = append([]string{}, rec.Errors...)
	s.jobs[rec.JobID] = cp
	return nil
}

func (s *MemJobStore) Get(_ context.Context, jobID string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	rec.Errors = append([]string{}, rec.Errors...)
	return &rec, nil
}

func (s *MemJobStore) List(_ context.Context, limit int) ([]model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobRecord, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].StartTime.Equal(out[k].StartTime) {
			return out[i].JobID < out[k].JobID
		}
		return out[i].StartTime.After(out[k].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Job returns a copy of a stored job, or nil.
func (s *MemJobStore) Job(jobID string) *model.JobRecord {
	rec, err := s.Get(context.Background(), jobID)
	if err != nil {
		return nil
	}
	return rec
}

// ─── Source store ────────────────────────────────────────────────────────────

// MemSourceStore is an in-memory registry.Store.
type MemSourceStore struct {
	mu      sync.Mutex
	Sources []model.SourceConfig
	// Err, when set, fails every call as if the store were unreachable.
	Err error
}

func (s *MemSourceStore) ScanEnabled(context.Context) ([]model.SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.SourceConfig, 0, len(s.Sources))
	for _, src := range s.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out, nil
}

// Get returns the first source named name, enabled or not.
func (s *MemSourceStore) Get(_ context.Context, name string) (model.SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.SourceConfig{}, s.Err
	}
	for _, src := range s.Sources {
		if src.Name == name {
			return src, nil
		}
	}
	return model.SourceConfig{}, registry.ErrSourceNotFound
}

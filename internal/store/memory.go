package store

import (
	"context"
	"sync"
	"time"

	"github.com/keygate/keygate/internal/model"
)

// MemoryStore is a Backend held entirely in process memory. Records are copied
// on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]*model.KeyRecord
	byHWID map[string]map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]*model.KeyRecord),
		byHWID: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) GetByKey(_ context.Context, key string) (*model.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) GetLiveByHWID(_ context.Context, hwid string, now time.Time) (*model.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.KeyRecord
	for key := range s.byHWID[hwid] {
		rec := s.byKey[key]
		if !rec.LiveAt(now) {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(newest), nil
}

func (s *MemoryStore) Insert(_ context.Context, rec *model.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[rec.Key]; exists {
		return ErrConflict
	}
	s.byKey[rec.Key] = cloneRecord(rec)
	keys, ok := s.byHWID[rec.HWID]
	if !ok {
		keys = make(map[string]struct{})
		s.byHWID[rec.HWID] = keys
	}
	keys[rec.Key] = struct{}{}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, upd model.KeyUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byKey[key]
	if !ok {
		return ErrNotFound
	}
	at := upd.LastValidatedAt
	rec.LastValidatedAt = &at
	rec.Used = upd.Used
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[key]; !ok {
		return ErrNotFound
	}
	s.removeLocked(key)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.byKey {
		if rec.ExpiredAt(now) {
			s.removeLocked(key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountLive(_ context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.byKey {
		if rec.LiveAt(now) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) removeLocked(key string) {
	rec := s.byKey[key]
	delete(s.byKey, key)
	if keys, ok := s.byHWID[rec.HWID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.byHWID, rec.HWID)
		}
	}
}

func cloneRecord(rec *model.KeyRecord) *model.KeyRecord {
	out := *rec
	if rec.LastValidatedAt != nil {
		at := *rec.LastValidatedAt
		out.LastValidatedAt = &at
	}
	return &out
}

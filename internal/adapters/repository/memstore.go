package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/metrics"
)

// MemoryStore keeps rosters in process memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]model.Roster
	byTeam map[string][]string // team -> keys in insertion order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]model.Roster),
		byTeam: make(map[string][]string),
	}
}

func (s *MemoryStore) Exists(_ context.Context, key model.DetectionKey) (bool, error) {
	start := time.Now()
	defer recordQuery(start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[key.Hash()]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, r model.Roster) error {
	start := time.Now()
	defer recordInsert(start)

	h := r.Key().Hash()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[h]; ok {
		return fmt.Errorf("%w: team %q", ErrDuplicate, r.TeamName)
	}
	s.byKey[h] = r
	s.byTeam[r.TeamName] = append(s.byTeam[r.TeamName], h)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, team string) (model.Roster, error) {
	start := time.Now()
	defer recordQuery(start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byTeam[team]
	if len(keys) == 0 {
		return model.Roster{}, fmt.Errorf("%w: %q", ErrNotFound, team)
	}
	newest := s.byKey[keys[0]]
	for _, k := range keys[1:] {
		if r := s.byKey[k]; !r.CreatedAt.Before(newest.CreatedAt) {
			newest = r
		}
	}
	return newest, nil
}

func (s *MemoryStore) Teams(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams := make([]string, 0, len(s.byTeam))
	for t := range s.byTeam {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey), nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func recordQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func recordInsert(start time.Time) {
	metrics.RecordStoreInsertLatency(float64(time.Since(start).Microseconds()) / 1000)
}

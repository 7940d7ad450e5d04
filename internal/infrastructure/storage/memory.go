package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bytelense/backend/internal/domain"
)

// MemoryProfileStore keeps profiles in process memory
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string][]byte
}

// NewMemoryProfileStore creates an empty in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string][]byte)}
}

func (s *MemoryProfileStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[domain.ProfileKey(name)]
	return ok, nil
}

func (s *MemoryProfileStore) Load(ctx context.Context, name string) (*domain.UserProfile, error) {
	s.mu.RLock()
	data, ok := s.profiles[domain.ProfileKey(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrProfileNotFound
	}

	// stored encoded so callers never share nested slices
	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *MemoryProfileStore) Create(ctx context.Context, profile *domain.UserProfile) error {
	key := domain.ProfileKey(profile.Name)
	if key == "" {
		return domain.ErrInvalidRequest
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[key]; ok {
		return domain.ErrProfileExists
	}
	s.profiles[key] = data
	return nil
}

func (s *MemoryProfileStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	key := domain.ProfileKey(profile.Name)
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[key]; !ok {
		return domain.ErrProfileNotFound
	}
	s.profiles[key] = data
	return nil
}

func (s *MemoryProfileStore) Close() error { return nil }

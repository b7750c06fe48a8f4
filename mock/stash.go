package mock

import (
	"context"
	"maps"
	"sync"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.StashStore = (*StashStore)(nil)

// StashStore is an in-memory implementation of recrawl.StashStore.
type StashStore struct {
	mu     sync.Mutex
	stash  map[string]map[string][]byte
	Saves  int
	SaveFn func(spider string, attrs map[string][]byte) error
}

// NewStashStore returns an empty StashStore.
func NewStashStore() *StashStore {
	return &StashStore{stash: make(map[string]map[string][]byte)}
}

func (s *StashStore) Exists(spider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stash[spider]
	return ok, nil
}

func (s *StashStore) Save(spider string, attrs map[string][]byte) error {
	if s.SaveFn != nil {
		if err := s.SaveFn(spider, attrs); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stash[spider] = maps.Clone(attrs)
	s.Saves++
	return nil
}

func (s *StashStore) Load(spider string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.stash[spider]
	if !ok {
		return nil, recrawl.Errorf(recrawl.ENOTFOUND, "no stash for %q", spider)
	}
	return maps.Clone(attrs), nil
}

func (s *StashStore) Remove(spider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stash, spider)
	return nil
}

// Decider returns a recrawl.Decider that always answers d.
func Decider(d recrawl.Decision) recrawl.DeciderFunc {
	return func(context.Context, string) (recrawl.Decision, error) { return d, nil }
}

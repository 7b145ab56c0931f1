package photo

import (
	"sync"
)

// Set just tracks whether a key exists. Used for reserved file names and
// hashes imported by earlier runs.
type Set struct {
	sync.RWMutex
	set map[string]bool
}

func NewSet(keys ...string) *Set {
	s := &Set{set: make(map[string]bool, len(keys))}
	for _, k := range keys {
		s.set[k] = true
	}
	return s
}

func (s *Set) Insert(key string) {
	s.Lock()
	defer s.Unlock()
	s.set[key] = true
}

func (s *Set) Check(key string) bool {
	if s == nil {
		return false
	}
	s.RLock()
	defer s.RUnlock()
	if _, ok := s.set[key]; ok {
		return true
	}
	return false
}

package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryStore is an in-process Store backed by a mutex-guarded map.
// It provides the same CAS and watch semantics as the NATS-backed store
// and is the backend used by tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers []*memoryWatcher
}

type memoryWatcher struct {
	prefix string
	ch     chan Event
	done   <-chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[path]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, path string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[path] = v
	s.mu.Unlock()

	s.notify(Event{Path: path, Value: v})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	// Remove the path itself and any children under it.
	deleted := false
	for k := range s.data {
		if Under(k, path) {
			delete(s.data, k)
			deleted = true
		}
	}
	s.mu.Unlock()

	if deleted {
		s.notify(Event{Path: path, Deleted: true})
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte)
	for k, v := range s.data {
		if Under(k, prefix) {
			c := make([]byte, len(v))
			copy(c, v)
			out[k] = c
		}
	}
	return out, nil
}

func (s *MemoryStore) TryCAS(ctx context.Context, path string, expectedOld, newValue []byte) (bool, error) {
	s.mu.Lock()
	cur, exists := s.data[path]

	if expectedOld == nil {
		if exists {
			s.mu.Unlock()
			return false, nil
		}
	} else {
		if !exists || !bytes.Equal(cur, expectedOld) {
			s.mu.Unlock()
			return false, nil
		}
	}

	var ev Event
	if newValue == nil {
		delete(s.data, path)
		ev = Event{Path: path, Deleted: true}
	} else {
		v := make([]byte, len(newValue))
		copy(v, newValue)
		s.data[path] = v
		ev = Event{Path: path, Value: v}
	}
	s.mu.Unlock()

	s.notify(ev)
	return true, nil
}

func (s *MemoryStore) Watch(ctx context.Context, prefix string) (<-chan Event, error) {
	w := &memoryWatcher{
		prefix: prefix,
		ch:     make(chan Event, 64),
		done:   ctx.Done(),
	}

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	// Initial event so observers always see current state without racing
	// the subscription.
	w.ch <- Event{Path: prefix}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, cand := range s.watchers {
			if cand == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	return w.ch, nil
}

// notify fans an event out to every watcher whose prefix covers the
// changed path. Slow watchers are skipped rather than blocked on: they
// will catch up on their next re-read.
func (s *MemoryStore) notify(ev Event) {
	s.mu.RLock()
	watchers := make([]*memoryWatcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.RUnlock()

	for _, w := range watchers {
		if !Under(ev.Path, w.prefix) && !Under(w.prefix, ev.Path) {
			continue
		}
		select {
		case <-w.done:
		case w.ch <- ev:
		default:
			log.Warn().Str("prefix", w.prefix).Str("path", ev.Path).Msg("watcher buffer full, dropping event")
		}
	}
}

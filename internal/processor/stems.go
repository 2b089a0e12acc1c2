package processor

import "sync"

// stemLocks serializes files that share an artifact path, such as
// report.txt and report.doc both writing output/report.gz.
type stemLocks struct {
	mu   sync.Mutex
	held map[string]*stemLock
}

type stemLock struct {
	sync.Mutex
	refs int
}

// acquire blocks until key is free. shared reports whether another file held
// or was waiting on key when acquire was called.
func (s *stemLocks) acquire(key string) (release func(), shared bool) {
	s.mu.Lock()
	if s.held == nil {
		s.held = make(map[string]*stemLock)
	}
	l, ok := s.held[key]
	if !ok {
		l = &stemLock{}
		s.held[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.held, key)
		}
		s.mu.Unlock()
	}, ok
}

package lock

import (
	"context"
	"fmt"
	"sync"
)

// LocalService is an in-process Service.
type LocalService struct {
	mu     sync.Mutex
	locks  map[string]*localLock
	closed bool
}

// localLock is a one-slot semaphore shared by everyone waiting on a key.
type localLock struct {
	ch      chan struct{}
	waiters int
}

// NewLocalService creates a LocalService.
func NewLocalService() *LocalService {
	return &LocalService{locks: make(map[string]*localLock)}
}

// Acquire locks key, waiting for the current holder or until ctx is done.
func (s *LocalService) Acquire(ctx context.Context, key string) (Releaser, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrAlreadyClosed
	}
	l, ok := s.locks[key]
	if !ok {
		l = &localLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.waiters++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return &localReleaser{service: s, key: key, lock: l}, nil
	case <-ctx.Done():
		s.forget(key, l)
		return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, displayKey(key), ctx.Err())
	}
}

// Close marks the service closed. Held locks stay valid until released.
func (s *LocalService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true
	return nil
}

func (s *LocalService) forget(key string, l *localLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(s.locks, key)
	}
}

type localReleaser struct {
	service *LocalService
	key     string
	lock    *localLock

	mu       sync.Mutex
	released bool
}

func (r *localReleaser) Release(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return fmt.Errorf("%w: %s", ErrNotHeld, displayKey(r.key))
	}
	r.released = true
	<-r.lock.ch
	r.service.forget(r.key, r.lock)
	return nil
}

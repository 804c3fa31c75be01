// Package lock serialises work on a (repository, ref) pair.
//
// LocalService coordinates goroutines of one process. RedisService
// coordinates processes sharing a Redis server, e.g. a post-receive hook and
// the webhook server running on different hosts.
package lock

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTimeout is returned when the context ends before the lock is acquired.
	ErrTimeout = errors.New("timed out waiting for lock")

	// ErrNotHeld is returned when releasing a lock that is no longer held,
	// because it was released already or it expired.
	ErrNotHeld = errors.New("lock not held")

	// ErrAlreadyClosed is returned by a closed Service.
	ErrAlreadyClosed = errors.New("lock service already closed")
)

// Service hands out locks by key.
type Service interface {
	// Acquire blocks until key is locked or ctx is done.
	Acquire(ctx context.Context, key string) (Releaser, error)
	// Close releases the service's resources.
	Close() error
}

// Releaser releases an acquired lock.
type Releaser interface {
	Release(ctx context.Context) error
}

const keySeparator = "\x00"

// Key returns the lock key of ref in repository.
func Key(repository, ref string) string {
	return repository + keySeparator + ref
}

// displayKey renders a key for messages.
func displayKey(key string) string {
	return strings.ReplaceAll(key, keySeparator, ":")
}

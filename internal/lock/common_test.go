package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"
)

// LockSuite runs the same tests against every Service implementation.
type LockSuite struct {
	suite.Suite
	NewService func() Service

	service Service
	closed  bool
}

func (s *LockSuite) SetupTest() {
	s.service = s.NewService()
	s.closed = false
}

func (s *LockSuite) TearDownTest() {
	if !s.closed {
		s.NoError(s.service.Close())
	}
}

func (s *LockSuite) TestAcquireRelease() {
	ctx := context.Background()
	key := Key("project", "refs/heads/main")

	for i := 0; i < 10; i++ {
		r, err := s.service.Acquire(ctx, key)
		s.Require().NoError(err)
		s.Require().NoError(r.Release(ctx))
	}
}

func (s *LockSuite) TestDoubleRelease() {
	ctx := context.Background()
	r, err := s.service.Acquire(ctx, Key("project", "refs/heads/main"))
	s.Require().NoError(err)

	s.NoError(r.Release(ctx))
	s.ErrorIs(r.Release(ctx), ErrNotHeld)
}

func (s *LockSuite) TestTimeout() {
	key := Key("project", "refs/heads/main")
	held, err := s.service.Acquire(context.Background(), key)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.service.Acquire(ctx, key)
	s.ErrorIs(err, ErrTimeout)
	s.ErrorIs(err, context.DeadlineExceeded)

	s.NoError(held.Release(context.Background()))

	r, err := s.service.Acquire(context.Background(), key)
	s.Require().NoError(err)
	s.NoError(r.Release(context.Background()))
}

func (s *LockSuite) TestIndependentKeys() {
	ctx := context.Background()
	main, err := s.service.Acquire(ctx, Key("project", "refs/heads/main"))
	s.Require().NoError(err)
	tag, err := s.service.Acquire(ctx, Key("project", "refs/tags/v1"))
	s.Require().NoError(err)
	other, err := s.service.Acquire(ctx, Key("other", "refs/heads/main"))
	s.Require().NoError(err)

	s.NoError(main.Release(ctx))
	s.NoError(tag.Release(ctx))
	s.NoError(other.Release(ctx))
}

func (s *LockSuite) TestMutualExclusion() {
	const workers = 20
	key := Key("project", "refs/heads/main")

	var inside, maxInside, counter int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			r, err := s.service.Acquire(ctx, key)
			if !s.NoError(err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&counter, 1)
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			s.NoError(r.Release(context.Background()))
		}()
	}
	wg.Wait()

	s.Equal(int32(workers), counter)
	s.Equal(int32(1), maxInside)
}

func (s *LockSuite) TestDoubleClose() {
	s.NoError(s.service.Close())
	s.ErrorIs(s.service.Close(), ErrAlreadyClosed)
	s.closed = true

	_, err := s.service.Acquire(context.Background(), Key("project", "refs/heads/main"))
	s.ErrorIs(err, ErrAlreadyClosed)
}

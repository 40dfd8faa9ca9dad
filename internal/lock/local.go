package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Local is an in-process Locker for single-instance deployments and tests.
// Each doctor gets a one-slot semaphore; waiters give up after wait. An
// entry lives only while someone holds or waits on it.
type Local struct {
	mu   sync.Mutex
	sems map[uuid.UUID]*localSem
	wait time.Duration
}

type localSem struct {
	ch   chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	return &Local{
		sems: make(map[uuid.UUID]*localSem),
		wait: wait,
	}
}

func (l *Local) ref(doctorID uuid.UUID) *localSem {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sems[doctorID]
	if !ok {
		s = &localSem{ch: make(chan struct{}, 1)}
		l.sems[doctorID] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(doctorID uuid.UUID, s *localSem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.sems, doctorID)
	}
}

func (l *Local) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	s := l.ref(doctorID)
	defer l.unref(doctorID, s)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		return ErrNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

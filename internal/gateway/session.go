package gateway

import (
	"sync"
	"time"
)

// Session is the daemon-side shadow of one connected reviewer. It carries no
// task state; every action is checked against the store inside the store's
// own transaction.
type Session struct {
	ReviewerID  string
	ConnectedAt time.Time

	beat      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(reviewerID string, now time.Time) *Session {
	return &Session{
		ReviewerID:  reviewerID,
		ConnectedAt: now,
		beat:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// ping marks the session alive. Never blocks; a pending ping is enough.
func (s *Session) ping() {
	select {
	case s.beat <- struct{}{}:
	default:
	}
}

// close ends the session. Safe to call multiple times.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

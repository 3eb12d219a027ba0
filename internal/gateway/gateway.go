// Package gateway owns the live reviewer sessions. A session is the entry
// point for one connected reviewer: it relays task actions to the store,
// runs the per-session heartbeat watchdog, and closes into presence=offline
// when the heartbeats stop. Closing a session never fails a held task; the
// deadline monitor requeues abandoned work when the deadline lapses.
package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// offlineTimeout bounds the presence write of a watchdog-closed session.
const offlineTimeout = 5 * time.Second

// Store is the slice of the task store the gateway forwards to.
type Store interface {
	ConnectReviewer(ctx context.Context, reviewerID string, now time.Time) (*review.Reviewer, error)
	Heartbeat(ctx context.Context, reviewerID string, now time.Time) (*review.Reviewer, error)
	SetPresence(ctx context.Context, reviewerID string, target review.Presence) (*review.Reviewer, error)
	Start(ctx context.Context, taskID, reviewerID string) (*review.Task, error)
	Complete(ctx context.Context, taskID, reviewerID, newResumeURL, notes string) (*review.Task, error)
	Fail(ctx context.Context, taskID, reviewerID, reason string) (*review.Task, error)
}

// Gateway enforces one logical session per reviewer and relays task actions
// to the store. It never caches task state.
type Gateway struct {
	store  Store
	clock  dispatch.Clock
	source dispatch.ConfigSource

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Config holds configuration for creating a Gateway.
type Config struct {
	// Store performs every state change. Required.
	Store Store
	// Source supplies the heartbeat TTL. Defaults to the stock settings if
	// nil.
	Source dispatch.ConfigSource
	// Clock provides time operations. Defaults to dispatch.RealClock if nil.
	Clock dispatch.Clock
}

// New creates a gateway with no open sessions.
func New(cfg Config) *Gateway {
	source := cfg.Source
	if source == nil {
		source = func() config.DispatchConfig { return config.DefaultDispatch() }
	}

	clock := cfg.Clock
	if clock == nil {
		clock = dispatch.RealClock{}
	}

	return &Gateway{
		store:    cfg.Store,
		clock:    clock,
		source:   source,
		sessions: make(map[string]*Session),
	}
}

// Connect opens the reviewer's session, superseding any previous one, and
// arms the heartbeat watchdog. The store decides the presence outcome:
// available when the reviewer is active with free hands, otherwise the prior
// presence is kept. Suspended reviewers are rejected and get no session.
func (g *Gateway) Connect(ctx context.Context, reviewerID string) (*review.Reviewer, error) {
	now := g.clock.Now()
	rev, err := g.store.ConnectReviewer(ctx, reviewerID, now)
	if err != nil {
		return nil, err
	}

	sess := newSession(reviewerID, now)
	g.mu.Lock()
	if old, ok := g.sessions[reviewerID]; ok {
		old.close()
	}
	g.sessions[reviewerID] = sess
	g.mu.Unlock()

	log.SafeGo("gateway.watchdog "+reviewerID, func() { g.watch(sess) })
	log.Info(log.CatGateway, "Reviewer connected",
		"reviewer", reviewerID, "presence", rev.Presence)
	return rev, nil
}

// Heartbeat refreshes the reviewer's liveness in the store and re-arms the
// session watchdog. Requires an open session.
func (g *Gateway) Heartbeat(ctx context.Context, reviewerID string) (*review.Reviewer, error) {
	sess, ok := g.session(reviewerID)
	if !ok {
		return nil, errNoSession(reviewerID)
	}

	rev, err := g.store.Heartbeat(ctx, reviewerID, g.clock.Now())
	if err != nil {
		g.evictOnSuspension(sess, err)
		return nil, err
	}

	sess.ping()
	return rev, nil
}

// Disconnect closes the reviewer's session and records presence offline.
// A held task stays assigned; the deadline monitor requeues it when the
// deadline lapses. Without an open session this is a no-op.
func (g *Gateway) Disconnect(ctx context.Context, reviewerID string) error {
	g.mu.Lock()
	sess, ok := g.sessions[reviewerID]
	if ok {
		delete(g.sessions, reviewerID)
	}
	g.mu.Unlock()
	if !ok {
		return nil
	}
	sess.close()

	if _, err := g.store.SetPresence(ctx, reviewerID, review.PresenceOffline); err != nil {
		// A suspension already forced the reviewer offline.
		if review.KindOf(err) == review.KindSuspended {
			return nil
		}
		return err
	}
	log.Info(log.CatGateway, "Reviewer disconnected", "reviewer", reviewerID)
	return nil
}

// StartTask relays a start action. Requires an open session; ownership is
// checked inside the store transaction.
func (g *Gateway) StartTask(ctx context.Context, reviewerID, taskID string) (*review.Task, error) {
	sess, ok := g.session(reviewerID)
	if !ok {
		return nil, errNoSession(reviewerID)
	}

	task, err := g.store.Start(ctx, taskID, reviewerID)
	if err != nil {
		g.evictOnSuspension(sess, err)
		return nil, err
	}
	return task, nil
}

// CompleteTask relays a complete action. Requires an open session.
func (g *Gateway) CompleteTask(ctx context.Context, reviewerID, taskID, newResumeURL, notes string) (*review.Task, error) {
	sess, ok := g.session(reviewerID)
	if !ok {
		return nil, errNoSession(reviewerID)
	}

	task, err := g.store.Complete(ctx, taskID, reviewerID, newResumeURL, notes)
	if err != nil {
		g.evictOnSuspension(sess, err)
		return nil, err
	}
	return task, nil
}

// FailTask relays a fail action. Requires an open session.
func (g *Gateway) FailTask(ctx context.Context, reviewerID, taskID, reason string) (*review.Task, error) {
	sess, ok := g.session(reviewerID)
	if !ok {
		return nil, errNoSession(reviewerID)
	}

	task, err := g.store.Fail(ctx, taskID, reviewerID, reason)
	if err != nil {
		g.evictOnSuspension(sess, err)
		return nil, err
	}
	return task, nil
}

// SessionCount returns the number of open sessions.
func (g *Gateway) SessionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// ActiveSessions returns the connected reviewer IDs, sorted.
func (g *Gateway) ActiveSessions() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll ends every session without touching presence, for daemon
// shutdown. The store keeps each reviewer's presence; stale heartbeats sort
// themselves out after restart.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, sess := range g.sessions {
		sess.close()
		delete(g.sessions, id)
	}
}

// watch closes the session into offline when the heartbeats stop. A
// superseded or explicitly closed session exits without touching presence.
func (g *Gateway) watch(sess *Session) {
	timer := g.clock.NewTimer(g.source().PresenceTTL)
	defer timer.Stop()

	for {
		select {
		case <-sess.beat:
			timer.Stop()
			timer = g.clock.NewTimer(g.source().PresenceTTL)

		case <-timer.C():
			g.dropStale(sess)
			return

		case <-sess.done:
			return
		}
	}
}

// dropStale unregisters a session whose heartbeat lapsed and flips the
// reviewer offline.
func (g *Gateway) dropStale(sess *Session) {
	if !g.remove(sess) {
		return
	}
	sess.close()
	log.Warn(log.CatGateway, "Session heartbeat missed, closing",
		"reviewer", sess.ReviewerID)

	ctx, cancel := context.WithTimeout(context.Background(), offlineTimeout)
	defer cancel()
	if _, err := g.store.SetPresence(ctx, sess.ReviewerID, review.PresenceOffline); err != nil {
		if review.KindOf(err) != review.KindSuspended {
			log.ErrorErr(log.CatGateway, "Failed to mark reviewer offline", err,
				"reviewer", sess.ReviewerID)
		}
	}
}

// evictOnSuspension drops the session when the store rejected an action
// because the reviewer is suspended. The suspension already forced presence
// offline, so no presence write happens here.
func (g *Gateway) evictOnSuspension(sess *Session, err error) {
	if review.KindOf(err) != review.KindSuspended {
		return
	}
	if g.remove(sess) {
		sess.close()
		log.Warn(log.CatGateway, "Session dropped, reviewer suspended",
			"reviewer", sess.ReviewerID)
	}
}

// remove unregisters sess iff it is still the reviewer's current session.
func (g *Gateway) remove(sess *Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[sess.ReviewerID] != sess {
		return false
	}
	delete(g.sessions, sess.ReviewerID)
	return true
}

// session returns the reviewer's open session.
func (g *Gateway) session(reviewerID string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sess, ok := g.sessions[reviewerID]
	return sess, ok
}

func errNoSession(reviewerID string) error {
	return review.NewError(review.KindIllegalTransition, "no_session",
		"reviewer %s has no open session", reviewerID)
}

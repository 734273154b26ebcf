package console

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resto-console/internal/gateway"
)

// Registry holds one live session per user and expires idle ones.
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	deps = deps.withDefaults()
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		deps:     deps,
		idleTTL:  idleTTL,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the user's session, creating it on first use, and records
// the latest token.
func (r *Registry) Acquire(userID, token string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, UnauthorizedError("User id is required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errClosed
	}
	sess, ok := r.sessions[userID]
	if !ok || sess.Closed() {
		sess = NewSession(uuid.NewString(), userID, token, r.deps)
		r.sessions[userID] = sess
		r.logger.Info("console session opened", zap.String("sessionId", sess.ID()), zap.String("userId", userID))
	}
	r.mu.Unlock()

	sess.touch(token)
	return sess, nil
}

func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[strings.TrimSpace(userID)]
	if !ok || sess.Closed() {
		return nil, false
	}
	return sess, true
}

// Refresh reloads the user's live session, if any, with the token it last saw.
// It reports whether a session was refreshed.
func (r *Registry) Refresh(ctx context.Context, userID string) (bool, error) {
	sess, ok := r.Lookup(userID)
	if !ok {
		return false, nil
	}
	if _, err := sess.Load(gateway.WithToken(ctx, sess.Token())); err != nil {
		if IsCode(err, ErrSessionClosed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RefreshAll reloads every live session; used when an event names no user.
func (r *Registry) RefreshAll(ctx context.Context) int {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		live = append(live, sess)
	}
	r.mu.Unlock()

	refreshed := 0
	for _, sess := range live {
		if _, err := sess.Load(gateway.WithToken(ctx, sess.Token())); err == nil {
			refreshed++
		}
	}
	return refreshed
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.deps.Clock.Now().Add(-r.idleTTL)

	r.mu.Lock()
	expired := make([]*Session, 0)
	for userID, sess := range r.sessions {
		if sess.Closed() || sess.idleSince().Before(cutoff) {
			delete(r.sessions, userID)
			expired = append(expired, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		r.logger.Info("console session expired", zap.String("sessionId", sess.ID()), zap.String("userId", sess.UserID()))
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every session; later Acquire calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// DefaultTokenWindow is the sliding recency window a token stays valid for
// after minting.
const DefaultTokenWindow = 2 * time.Minute

// Registry owns the open-session state for every class handled by this
// process. It is the single authority consulted by scan validation: tokens
// and check-ins are persisted through the session store, but membership
// decisions are made against the in-memory copy under per-session locks.
type Registry struct {
	sessions store.SessionStore
	window   time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	byClass map[string]*liveSession // classID -> open session
	byID    map[string]*liveSession // sessionID -> open session
}

// liveSession guards one open session. Check-in membership checks and
// appends happen under mu so two concurrent scans from the same student
// cannot both succeed.
type liveSession struct {
	mu   sync.Mutex
	data *types.ClassSession
}

func NewRegistry(sessions store.SessionStore, window time.Duration, now func() time.Time) *Registry {
	if window <= 0 {
		window = DefaultTokenWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: sessions,
		window:   window,
		now:      now,
		byClass:  make(map[string]*liveSession),
		byID:     make(map[string]*liveSession),
	}
}

// Window returns the configured token recency window.
func (r *Registry) Window() time.Duration { return r.window }

// OpenInfo carries the class context a new session is created with.
type OpenInfo struct {
	ClassID      string
	ClassName    string
	TeacherID    string
	Organization string
}

// Open creates and persists a new session for the class. A class has at most
// one open session; a second open fails with ErrSessionAlreadyOpen.
func (r *Registry) Open(ctx context.Context, info OpenInfo) (*types.ClassSession, error) {
	r.mu.Lock()
	if _, exists := r.byClass[info.ClassID]; exists {
		r.mu.Unlock()
		return nil, ErrSessionAlreadyOpen
	}
	// Reserve the slot before the store round-trip so a concurrent open for
	// the same class fails fast.
	placeholder := &liveSession{}
	r.byClass[info.ClassID] = placeholder
	r.mu.Unlock()

	sess := &types.ClassSession{
		ID:           uuid.NewString(),
		ClassID:      info.ClassID,
		ClassName:    info.ClassName,
		TeacherID:    info.TeacherID,
		Organization: info.Organization,
		OpenedAt:     r.now(),
		Status:       types.SessionStatusOpen,
		ActiveTokens: []types.ActiveToken{},
		CheckedIn:    []types.CheckIn{},
	}

	if err := r.sessions.Create(ctx, sess); err != nil {
		r.mu.Lock()
		delete(r.byClass, info.ClassID)
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	placeholder.data = sess
	r.mu.Lock()
	r.byID[sess.ID] = placeholder
	r.mu.Unlock()

	log.Printf("Opened session: id=%s class=%s", sess.ID, info.ClassID)
	return snapshotOf(sess), nil
}

// AppendToken persists the token and then adds it to the live set.
// Persist-then-publish: a token the store never saw is never broadcast.
// Appending to a session that already closed is a no-op (late timer tick).
func (r *Registry) AppendToken(ctx context.Context, sessionID string, token types.ActiveToken) error {
	live, ok := r.lookupByID(sessionID)
	if !ok {
		return nil
	}

	if err := r.sessions.AppendToken(ctx, sessionID, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.data == nil || live.data.Status != types.SessionStatusOpen {
		return nil
	}
	live.data.ActiveTokens = append(live.data.ActiveTokens, token)
	return nil
}

// SnapshotByClass returns a copy of the class's open session, or nil.
func (r *Registry) SnapshotByClass(classID string) *types.ClassSession {
	r.mu.RLock()
	live, ok := r.byClass[classID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.data == nil {
		return nil
	}
	return snapshotOf(live.data)
}

// RecentTokens returns the session's tokens minted within the recency window
// of now, as a membership set.
func (r *Registry) RecentTokens(sessionID string) map[string]struct{} {
	live, ok := r.lookupByID(sessionID)
	if !ok {
		return nil
	}
	cutoff := r.now().Add(-r.window)

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.data == nil {
		return nil
	}
	recent := make(map[string]struct{}, len(live.data.ActiveTokens))
	for _, t := range live.data.ActiveTokens {
		if !t.MintedAt.Before(cutoff) {
			recent[t.Token] = struct{}{}
		}
	}
	return recent
}

// AddCheckIn atomically verifies the student has not checked in yet and
// appends them to the live session. The caller is responsible for the
// durable dual-aggregate write that follows.
func (r *Registry) AddCheckIn(sessionID string, checkIn types.CheckIn) (*types.ClassSession, error) {
	live, ok := r.lookupByID(sessionID)
	if !ok {
		return nil, ErrNoOpenSession
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	if live.data == nil || live.data.Status != types.SessionStatusOpen {
		return nil, ErrNoOpenSession
	}
	if live.data.HasCheckedIn(checkIn.StudentID) {
		return nil, ErrAlreadyCheckedIn
	}
	live.data.CheckedIn = append(live.data.CheckedIn, checkIn)
	return snapshotOf(live.data), nil
}

// RemoveCheckIn drops a student from the live session after a teacher
// correction. No-op if the session is not open in this process.
func (r *Registry) RemoveCheckIn(sessionID, studentID string) *types.ClassSession {
	live, ok := r.lookupByID(sessionID)
	if !ok {
		return nil
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.data == nil {
		return nil
	}
	kept := live.data.CheckedIn[:0]
	for _, c := range live.data.CheckedIn {
		if c.StudentID != studentID {
			kept = append(kept, c)
		}
	}
	live.data.CheckedIn = kept
	return snapshotOf(live.data)
}

// Close ends the session: active tokens are cleared, the check-in roster is
// retained as the historical record. Closing an unknown or already-closed
// session is a no-op.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	live, ok := r.byID[sessionID]
	if ok {
		delete(r.byID, sessionID)
		if live.data != nil {
			delete(r.byClass, live.data.ClassID)
		}
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	live.mu.Lock()
	if live.data != nil {
		live.data.Status = types.SessionStatusClosed
		live.data.ActiveTokens = nil
	}
	live.mu.Unlock()

	if err := r.sessions.Close(ctx, sessionID, r.now()); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	log.Printf("Closed session: id=%s", sessionID)
	return nil
}

// CloseStale closes sessions the store still records as open but this
// process does not own. Sessions are bound to a display connection, so an
// open session nobody holds was orphaned by a previous run and would block
// its class from opening again. Returns how many sessions were closed.
func (r *Registry) CloseStale(ctx context.Context) int {
	open, err := r.sessions.ListOpen(ctx)
	if err != nil {
		log.Printf("Failed to list open sessions: %v", err)
		return 0
	}

	closed := 0
	for _, sess := range open {
		if _, ok := r.lookupByID(sess.ID); ok {
			continue
		}
		if err := r.sessions.Close(ctx, sess.ID, r.now()); err != nil {
			log.Printf("Failed to close stale session %s: %v", sess.ID, err)
			continue
		}
		closed++
		log.Printf("Closed stale session: id=%s class=%s", sess.ID, sess.ClassID)
	}
	return closed
}

func (r *Registry) lookupByID(sessionID string) (*liveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.byID[sessionID]
	return live, ok
}

func snapshotOf(s *types.ClassSession) *types.ClassSession {
	cp := *s
	cp.ActiveTokens = append([]types.ActiveToken(nil), s.ActiveTokens...)
	cp.CheckedIn = append([]types.CheckIn(nil), s.CheckedIn...)
	return &cp
}

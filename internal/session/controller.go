package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"rollcall/internal/broadcast"
	"rollcall/internal/journal"
	"rollcall/internal/mint"
	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// DefaultRotateInterval is the token rotation cadence.
const DefaultRotateInterval = time.Second

// Roster resolves class membership and organization policy. Implemented by
// the classroom service; the engine treats both as external lookups.
type Roster interface {
	IsEnrolled(ctx context.Context, studentID, classID string) (bool, error)
	ClassInfo(ctx context.Context, classID string) (OpenInfo, error)
	Policy(ctx context.Context, classID string) (types.OrganizationPolicy, error)
}

// Controller drives the session lifecycle: it opens a session when a display
// subscribes, rotates tokens on a timer while the session is open, accepts
// scans, and closes the session when the display goes away.
type Controller struct {
	registry *Registry
	minter   *mint.Mint
	bcast    *broadcast.Broadcaster
	journal  *journal.Journal
	students store.StudentStore
	sessions store.SessionStore
	roster   Roster
	rotate   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	tickers map[string]chan struct{} // sessionID -> rotation stop signal
	wg      sync.WaitGroup
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Registry       *Registry
	Mint           *mint.Mint
	Broadcaster    *broadcast.Broadcaster
	Journal        *journal.Journal
	Students       store.StudentStore
	Sessions       store.SessionStore
	Roster         Roster
	RotateInterval time.Duration
	Now            func() time.Time
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.RotateInterval <= 0 {
		cfg.RotateInterval = DefaultRotateInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		registry: cfg.Registry,
		minter:   cfg.Mint,
		bcast:    cfg.Broadcaster,
		journal:  cfg.Journal,
		students: cfg.Students,
		sessions: cfg.Sessions,
		roster:   cfg.Roster,
		rotate:   cfg.RotateInterval,
		now:      cfg.Now,
		tickers:  make(map[string]chan struct{}),
	}
}

// OpenDisplay opens a session for the class and subscribes the caller to its
// token stream. The returned subscription must be released through
// CloseDisplay when the display disconnects; that is what ends the session.
func (c *Controller) OpenDisplay(ctx context.Context, classID string) (*types.ClassSession, *broadcast.TokenSub, error) {
	info, err := c.roster.ClassInfo(ctx, classID)
	if err != nil {
		return nil, nil, err
	}

	sess, err := c.registry.Open(ctx, info)
	if err != nil {
		return nil, nil, err
	}

	sub := c.bcast.SubscribeTokens(classID)

	stop := make(chan struct{})
	c.mu.Lock()
	c.tickers[sess.ID] = stop
	c.mu.Unlock()

	c.wg.Add(1)
	go c.rotateLoop(sess.ID, classID, stop)

	return sess, sub, nil
}

// rotateLoop mints one token per tick until the session closes. A failed
// persist is logged and retried on the next tick; the loop never dies early.
func (c *Controller) rotateLoop(sessionID, classID string, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.rotate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			token := c.minter.Token()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.registry.AppendToken(ctx, sessionID, token)
			cancel()
			if err != nil {
				log.Printf("Token persist failed for session %s, retrying next tick: %v", sessionID, err)
				continue
			}
			c.bcast.PublishToken(classID, token)
		case <-stop:
			return
		}
	}
}

// CloseDisplay ends the session: the rotation timer stops, active tokens are
// cleared, and the check-in roster is retained as history. Idempotent.
func (c *Controller) CloseDisplay(ctx context.Context, sessionID string, sub *broadcast.TokenSub) error {
	c.mu.Lock()
	stop, ok := c.tickers[sessionID]
	if ok {
		delete(c.tickers, sessionID)
	}
	c.mu.Unlock()
	if ok {
		close(stop)
	}

	if sub != nil {
		c.bcast.UnsubscribeTokens(sub)
	}
	return c.registry.Close(ctx, sessionID)
}

// OpenMonitor subscribes the caller to the class presence stream. If a
// session is open, the current roster is returned as an initial snapshot so
// a monitor connecting mid-session does not start blind.
func (c *Controller) OpenMonitor(classID string) (*broadcast.MonitorSub, *types.PresenceUpdate) {
	sub := c.bcast.SubscribeMonitor(classID)

	if snap := c.registry.SnapshotByClass(classID); snap != nil {
		return sub, &types.PresenceUpdate{
			SessionID: snap.ID,
			ClassID:   classID,
			CheckedIn: snap.CheckedIn,
		}
	}
	return sub, nil
}

// CloseMonitor releases a monitor subscription.
func (c *Controller) CloseMonitor(sub *broadcast.MonitorSub) {
	c.bcast.UnsubscribeMonitor(sub)
}

// SubmitScan validates a scan and, if accepted, performs the check-in: the
// intent is journaled, both aggregates are appended, and monitors are
// notified. Rejections come back as the sentinel errors in this package.
func (c *Controller) SubmitScan(ctx context.Context, scan types.Scan) (*types.CheckIn, error) {
	enrolled, err := c.roster.IsEnrolled(ctx, scan.StudentID, scan.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	policy, err := c.roster.Policy(ctx, scan.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve org policy: %w", err)
	}

	snap := c.registry.SnapshotByClass(scan.ClassID)
	var recent map[string]struct{}
	if snap != nil {
		recent = c.registry.RecentTokens(snap.ID)
	}

	if err := ValidateScan(scan, ScanInput{
		Enrolled: true,
		Session:  snap,
		Recent:   recent,
		Policy:   policy,
	}); err != nil {
		return nil, err
	}

	student, err := c.students.GetByID(ctx, scan.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	checkIn := types.CheckIn{
		StudentID:   student.ID,
		SRN:         student.SRN,
		Name:        student.Name,
		CheckedInAt: c.now(),
	}

	// The membership check and append are atomic per session; of two racing
	// scans from one student exactly one passes.
	updated, err := c.registry.AddCheckIn(snap.ID, checkIn)
	if err != nil {
		return nil, err
	}

	entry := journal.Entry{
		SessionID:   snap.ID,
		StudentID:   student.ID,
		ClassID:     scan.ClassID,
		ClassName:   snap.ClassName,
		SRN:         student.SRN,
		StudentName: student.Name,
		RecordedAt:  checkIn.CheckedInAt,
	}
	if err := c.journal.Record(entry); err != nil {
		// No durable intent: undo the in-memory accept and fail the scan.
		c.registry.RemoveCheckIn(snap.ID, student.ID)
		return nil, fmt.Errorf("failed to journal check-in: %w", err)
	}

	// The check-in is durable from here. Document-write failures are logged
	// and left for the reconciler; the student's accept stands.
	if err := c.sessions.AppendCheckIn(ctx, snap.ID, checkIn); err != nil {
		log.Printf("Session write failed for %s/%s, reconciler will repair: %v", snap.ID, student.ID, err)
	} else if err := c.journal.MarkSessionApplied(snap.ID, student.ID); err != nil {
		log.Printf("Failed to mark session row applied: %v", err)
	}

	if err := c.students.AppendAttendance(ctx, student.ID, entry.AttendanceEntry()); err != nil {
		log.Printf("Attendance write failed for %s/%s, reconciler will repair: %v", snap.ID, student.ID, err)
	} else if err := c.journal.MarkStudentApplied(snap.ID, student.ID); err != nil {
		log.Printf("Failed to mark student row applied: %v", err)
	}

	c.bcast.PublishPresence(scan.ClassID, types.PresenceUpdate{
		SessionID: snap.ID,
		ClassID:   scan.ClassID,
		CheckedIn: updated.CheckedIn,
	})

	return &checkIn, nil
}

// DeleteCheckIn removes a student's check-in from both aggregates, the
// teacher-initiated correction path. Monitors are notified if the session is
// still live.
func (c *Controller) DeleteCheckIn(ctx context.Context, sessionID, studentID string) error {
	sess, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.HasCheckedIn(studentID) {
		return store.ErrNotFound
	}

	if err := c.sessions.RemoveCheckIn(ctx, sessionID, studentID); err != nil {
		return fmt.Errorf("failed to remove check-in: %w", err)
	}
	if err := c.students.RemoveAttendance(ctx, studentID, sessionID); err != nil && err != store.ErrNotFound {
		return fmt.Errorf("failed to remove attendance entry: %w", err)
	}
	if err := c.journal.Delete(sessionID, studentID); err != nil {
		log.Printf("Failed to delete journal row %s/%s: %v", sessionID, studentID, err)
	}

	if snap := c.registry.RemoveCheckIn(sessionID, studentID); snap != nil {
		c.bcast.PublishPresence(snap.ClassID, types.PresenceUpdate{
			SessionID: sessionID,
			ClassID:   snap.ClassID,
			CheckedIn: snap.CheckedIn,
		})
	}
	return nil
}

// Shutdown stops every rotation timer and closes all open sessions.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	stops := c.tickers
	c.tickers = make(map[string]chan struct{})
	c.mu.Unlock()

	for sessionID, stop := range stops {
		close(stop)
		if err := c.registry.Close(ctx, sessionID); err != nil {
			log.Printf("Failed to close session %s on shutdown: %v", sessionID, err)
		}
	}
	c.wg.Wait()
}

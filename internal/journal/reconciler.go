package journal

import (
	"context"
	"log"
	"time"

	"rollcall/internal/store"
)

// Reconciler periodically replays pending journal entries against the
// document store. The appends it issues are idempotent, so repairing a row
// that a racing request just completed is harmless.
type Reconciler struct {
	journal  *Journal
	sessions store.SessionStore
	students store.StudentStore
	interval time.Duration
	stop     chan struct{}
	stopped  chan struct{}
}

func NewReconciler(j *Journal, sessions store.SessionStore, students store.StudentStore, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		journal:  j,
		sessions: sessions,
		students: students,
		interval: interval,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop or context cancellation.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(ctx); n > 0 {
					log.Printf("Reconciler repaired %d partial check-in writes", n)
				}
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.stopped
}

// Sweep repairs every pending entry once and returns how many rows were
// completed.
func (r *Reconciler) Sweep(ctx context.Context) int {
	pending, err := r.journal.Pending(ctx)
	if err != nil {
		log.Printf("Reconciler failed to list pending entries: %v", err)
		return 0
	}

	repaired := 0
	for _, e := range pending {
		if !e.SessionApplied {
			if err := r.sessions.AppendCheckIn(ctx, e.SessionID, e.CheckIn()); err != nil {
				log.Printf("Reconciler failed to repair session %s: %v", e.SessionID, err)
				continue
			}
			if err := r.journal.MarkSessionApplied(e.SessionID, e.StudentID); err != nil {
				log.Printf("Reconciler failed to mark session row: %v", err)
				continue
			}
		}
		if !e.StudentApplied {
			if err := r.students.AppendAttendance(ctx, e.StudentID, e.AttendanceEntry()); err != nil {
				log.Printf("Reconciler failed to repair student %s: %v", e.StudentID, err)
				continue
			}
			if err := r.journal.MarkStudentApplied(e.SessionID, e.StudentID); err != nil {
				log.Printf("Reconciler failed to mark student row: %v", err)
				continue
			}
		}
		repaired++
	}
	return repaired
}

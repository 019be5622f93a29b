// Package journal is the durable check-in intent log. Every accepted scan is
// recorded here before the session and student documents are written; rows
// whose document writes did not complete are replayed by the reconciler, so
// a crash between the two writes cannot leave the aggregates diverged.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rollcall/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkin_journal (
	session_id      TEXT NOT NULL,
	student_id      TEXT NOT NULL,
	class_id        TEXT NOT NULL,
	class_name      TEXT NOT NULL,
	srn             TEXT NOT NULL,
	student_name    TEXT NOT NULL,
	recorded_at     TIMESTAMP NOT NULL,
	session_applied INTEGER NOT NULL DEFAULT 0,
	student_applied INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, student_id)
);
CREATE INDEX IF NOT EXISTS idx_journal_pending
	ON checkin_journal (session_applied, student_applied);
`

// Entry is one journaled check-in.
type Entry struct {
	SessionID      string
	StudentID      string
	ClassID        string
	ClassName      string
	SRN            string
	StudentName    string
	RecordedAt     time.Time
	SessionApplied bool
	StudentApplied bool
}

// CheckIn converts the entry to its session-aggregate form.
func (e Entry) CheckIn() types.CheckIn {
	return types.CheckIn{
		StudentID:   e.StudentID,
		SRN:         e.SRN,
		Name:        e.StudentName,
		CheckedInAt: e.RecordedAt,
	}
}

// AttendanceEntry converts the entry to its student-aggregate form.
func (e Entry) AttendanceEntry() types.AttendanceEntry {
	return types.AttendanceEntry{
		SessionID:  e.SessionID,
		ClassID:    e.ClassID,
		ClassName:  e.ClassName,
		RecordedAt: e.RecordedAt,
	}
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// Journal is a SQLite-backed log. All writes funnel through a single
// goroutine; SQLite performs poorly under concurrent writers.
type Journal struct {
	db      *sql.DB
	writes  chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	j := &Journal{
		db:      db,
		writes:  make(chan writeOp, 100),
		done:    make(chan struct{}),
		timeout: 30 * time.Second,
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j, nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case op := <-j.writes:
			op.result <- op.fn(j.db)
		case <-j.done:
			return
		}
	}
}

func (j *Journal) write(fn func(*sql.DB) error) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return fmt.Errorf("journal is closed")
	}
	j.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case j.writes <- writeOp{fn: fn, result: result}:
		return <-result
	case <-time.After(j.timeout):
		return fmt.Errorf("journal write timeout")
	case <-j.done:
		return fmt.Errorf("journal is closed")
	}
}

// Record inserts the check-in intent. Recording the same (session, student)
// twice is an error; the registry's membership check runs first.
func (j *Journal) Record(e Entry) error {
	return j.write(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO checkin_journal
				(session_id, student_id, class_id, class_name, srn, student_name, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.StudentID, e.ClassID, e.ClassName, e.SRN, e.StudentName, e.RecordedAt)
		return err
	})
}

// MarkSessionApplied records that the session-aggregate write completed.
func (j *Journal) MarkSessionApplied(sessionID, studentID string) error {
	return j.mark("session_applied", sessionID, studentID)
}

// MarkStudentApplied records that the student-aggregate write completed.
func (j *Journal) MarkStudentApplied(sessionID, studentID string) error {
	return j.mark("student_applied", sessionID, studentID)
}

func (j *Journal) mark(column, sessionID, studentID string) error {
	return j.write(func(db *sql.DB) error {
		_, err := db.Exec(
			`UPDATE checkin_journal SET `+column+` = 1 WHERE session_id = ? AND student_id = ?`,
			sessionID, studentID)
		return err
	})
}

// Delete removes the row after a teacher correction deleted the check-in
// from both aggregates.
func (j *Journal) Delete(sessionID, studentID string) error {
	return j.write(func(db *sql.DB) error {
		_, err := db.Exec(
			`DELETE FROM checkin_journal WHERE session_id = ? AND student_id = ?`,
			sessionID, studentID)
		return err
	})
}

// Pending returns entries whose document writes have not all completed.
func (j *Journal) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, student_id, class_id, class_name, srn, student_name,
		       recorded_at, session_applied, student_applied
		FROM checkin_journal
		WHERE session_applied = 0 OR student_applied = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.StudentID, &e.ClassID, &e.ClassName,
			&e.SRN, &e.StudentName, &e.RecordedAt, &e.SessionApplied, &e.StudentApplied); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close shuts the write loop down and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.done)
	j.wg.Wait()
	if err := j.db.Close(); err != nil {
		log.Printf("Journal close error: %v", err)
		return err
	}
	return nil
}

// Package store defines the persistence boundary of the platform. The
// document-store implementation lives in store/mongo; store/inmem backs the
// tests.
package store

import (
	"context"
	"errors"
	"time"

	"rollcall/pkg/types"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint would be violated.
	ErrDuplicate = errors.New("already exists")
)

// AdminStore persists organization-admin documents and the org policy they carry.
type AdminStore interface {
	Create(ctx context.Context, admin *types.Admin) error
	GetByID(ctx context.Context, id string) (*types.Admin, error)
	GetByEmail(ctx context.Context, email string) (*types.Admin, error)
	GetByEmailToken(ctx context.Context, token string) (*types.Admin, error)
	GetByOrganization(ctx context.Context, org string) (*types.Admin, error)
	ListOrganizations(ctx context.Context) ([]string, error)
	Update(ctx context.Context, admin *types.Admin) error
}

// TeacherStore persists teacher documents with their embedded classes.
type TeacherStore interface {
	Create(ctx context.Context, teacher *types.Teacher) error
	GetByID(ctx context.Context, id string) (*types.Teacher, error)
	GetByEmail(ctx context.Context, email string) (*types.Teacher, error)
	GetByEmailToken(ctx context.Context, token string) (*types.Teacher, error)
	GetByTRN(ctx context.Context, org, trn string) (*types.Teacher, error)
	// GetByClassID resolves the teacher owning the embedded class.
	GetByClassID(ctx context.Context, classID string) (*types.Teacher, error)
	ListByOrganization(ctx context.Context, org string) ([]*types.Teacher, error)
	Update(ctx context.Context, teacher *types.Teacher) error
	Delete(ctx context.Context, id string) error
}

// StudentStore persists student documents and their attendance history.
type StudentStore interface {
	Create(ctx context.Context, student *types.Student) error
	GetByID(ctx context.Context, id string) (*types.Student, error)
	GetByEmail(ctx context.Context, email string) (*types.Student, error)
	GetByEmailToken(ctx context.Context, token string) (*types.Student, error)
	GetBySRN(ctx context.Context, org, srn string) (*types.Student, error)
	ListByOrganization(ctx context.Context, org string) ([]*types.Student, error)
	Update(ctx context.Context, student *types.Student) error
	// AppendAttendance adds one history entry; it is a no-op if an entry for
	// the same session already exists, so the dual-write repair can replay it.
	AppendAttendance(ctx context.Context, studentID string, entry types.AttendanceEntry) error
	RemoveAttendance(ctx context.Context, studentID, sessionID string) error
}

// SessionStore persists class sessions, open and historical.
type SessionStore interface {
	Create(ctx context.Context, session *types.ClassSession) error
	GetByID(ctx context.Context, id string) (*types.ClassSession, error)
	// GetOpenByClass returns the class's open session, ErrNotFound if none.
	GetOpenByClass(ctx context.Context, classID string) (*types.ClassSession, error)
	// ListOpen returns every session still marked open, across all classes.
	ListOpen(ctx context.Context) ([]*types.ClassSession, error)
	ListByClass(ctx context.Context, classID string) ([]*types.ClassSession, error)
	AppendToken(ctx context.Context, sessionID string, token types.ActiveToken) error
	// AppendCheckIn adds the check-in unless the student is already present,
	// so replays from the journal reconciler stay idempotent.
	AppendCheckIn(ctx context.Context, sessionID string, checkIn types.CheckIn) error
	RemoveCheckIn(ctx context.Context, sessionID, studentID string) error
	// Close marks the session closed and clears its active tokens. Closing a
	// closed session is a no-op.
	Close(ctx context.Context, sessionID string, closedAt time.Time) error
}

// Store aggregates the per-aggregate stores behind one handle.
type Store interface {
	Admins() AdminStore
	Teachers() TeacherStore
	Students() StudentStore
	Sessions() SessionStore
}

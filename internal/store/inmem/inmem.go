// Package inmem is an in-memory Store used by tests and local development.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// Store keeps every aggregate in process memory behind one mutex. Documents
// are copied on the way in and out so callers never share backing arrays.
type Store struct {
	mu       sync.RWMutex
	admins   map[string]*types.Admin
	teachers map[string]*types.Teacher
	students map[string]*types.Student
	sessions map[string]*types.ClassSession
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		admins:   make(map[string]*types.Admin),
		teachers: make(map[string]*types.Teacher),
		students: make(map[string]*types.Student),
		sessions: make(map[string]*types.ClassSession),
	}
}

func (s *Store) Admins() store.AdminStore     { return (*adminStore)(s) }
func (s *Store) Teachers() store.TeacherStore { return (*teacherStore)(s) }
func (s *Store) Students() store.StudentStore { return (*studentStore)(s) }
func (s *Store) Sessions() store.SessionStore { return (*sessionStore)(s) }

// admins

type adminStore Store

func (s *adminStore) Create(_ context.Context, admin *types.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == admin.Email || a.Organization == admin.Organization {
			return store.ErrDuplicate
		}
	}
	cp := *admin
	s.admins[admin.ID] = &cp
	return nil
}

func (s *adminStore) GetByID(_ context.Context, id string) (*types.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.admins[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *adminStore) GetByEmail(_ context.Context, email string) (*types.Admin, error) {
	return s.find(func(a *types.Admin) bool { return a.Email == email })
}

func (s *adminStore) GetByEmailToken(_ context.Context, token string) (*types.Admin, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.find(func(a *types.Admin) bool { return a.EmailToken == token })
}

func (s *adminStore) GetByOrganization(_ context.Context, org string) (*types.Admin, error) {
	return s.find(func(a *types.Admin) bool { return a.Organization == org })
}

func (s *adminStore) ListOrganizations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgs := make([]string, 0, len(s.admins))
	for _, a := range s.admins {
		orgs = append(orgs, a.Organization)
	}
	sort.Strings(orgs)
	return orgs, nil
}

func (s *adminStore) Update(_ context.Context, admin *types.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[admin.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *admin
	s.admins[admin.ID] = &cp
	return nil
}

func (s *adminStore) find(match func(*types.Admin) bool) (*types.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// teachers

type teacherStore Store

func copyTeacher(t *types.Teacher) *types.Teacher {
	cp := *t
	cp.Classes = make([]types.Class, len(t.Classes))
	for i, c := range t.Classes {
		cp.Classes[i] = c
		cp.Classes[i].StudentIDs = append([]string(nil), c.StudentIDs...)
	}
	return &cp
}

func (s *teacherStore) Create(_ context.Context, teacher *types.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teachers {
		if t.Email == teacher.Email {
			return store.ErrDuplicate
		}
	}
	s.teachers[teacher.ID] = copyTeacher(teacher)
	return nil
}

func (s *teacherStore) GetByID(_ context.Context, id string) (*types.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.teachers[id]; ok {
		return copyTeacher(t), nil
	}
	return nil, store.ErrNotFound
}

func (s *teacherStore) GetByEmail(_ context.Context, email string) (*types.Teacher, error) {
	return s.find(func(t *types.Teacher) bool { return t.Email == email })
}

func (s *teacherStore) GetByEmailToken(_ context.Context, token string) (*types.Teacher, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.find(func(t *types.Teacher) bool { return t.EmailToken == token })
}

func (s *teacherStore) GetByTRN(_ context.Context, org, trn string) (*types.Teacher, error) {
	return s.find(func(t *types.Teacher) bool { return t.Organization == org && t.TRN == trn })
}

func (s *teacherStore) GetByClassID(_ context.Context, classID string) (*types.Teacher, error) {
	return s.find(func(t *types.Teacher) bool {
		_, ok := t.ClassByID(classID)
		return ok
	})
}

func (s *teacherStore) ListByOrganization(_ context.Context, org string) ([]*types.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Teacher
	for _, t := range s.teachers {
		if t.Organization == org {
			out = append(out, copyTeacher(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *teacherStore) Update(_ context.Context, teacher *types.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[teacher.ID]; !ok {
		return store.ErrNotFound
	}
	s.teachers[teacher.ID] = copyTeacher(teacher)
	return nil
}

func (s *teacherStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.teachers, id)
	return nil
}

func (s *teacherStore) find(match func(*types.Teacher) bool) (*types.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teachers {
		if match(t) {
			return copyTeacher(t), nil
		}
	}
	return nil, store.ErrNotFound
}

// students

type studentStore Store

func copyStudent(st *types.Student) *types.Student {
	cp := *st
	cp.Classes = append([]types.ClassRef(nil), st.Classes...)
	cp.Attendance = append([]types.AttendanceEntry(nil), st.Attendance...)
	return &cp
}

func (s *studentStore) Create(_ context.Context, student *types.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.students {
		if st.Email == student.Email {
			return store.ErrDuplicate
		}
		if st.University == student.University && st.SRN == student.SRN {
			return store.ErrDuplicate
		}
	}
	s.students[student.ID] = copyStudent(student)
	return nil
}

func (s *studentStore) GetByID(_ context.Context, id string) (*types.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.students[id]; ok {
		return copyStudent(st), nil
	}
	return nil, store.ErrNotFound
}

func (s *studentStore) GetByEmail(_ context.Context, email string) (*types.Student, error) {
	return s.find(func(st *types.Student) bool { return st.Email == email })
}

func (s *studentStore) GetByEmailToken(_ context.Context, token string) (*types.Student, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.find(func(st *types.Student) bool { return st.EmailToken == token })
}

func (s *studentStore) GetBySRN(_ context.Context, org, srn string) (*types.Student, error) {
	return s.find(func(st *types.Student) bool { return st.University == org && st.SRN == srn })
}

func (s *studentStore) ListByOrganization(_ context.Context, org string) ([]*types.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Student
	for _, st := range s.students {
		if st.University == org {
			out = append(out, copyStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *studentStore) Update(_ context.Context, student *types.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; !ok {
		return store.ErrNotFound
	}
	s.students[student.ID] = copyStudent(student)
	return nil
}

func (s *studentStore) AppendAttendance(_ context.Context, studentID string, entry types.AttendanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return store.ErrNotFound
	}
	for _, e := range st.Attendance {
		if e.SessionID == entry.SessionID {
			return nil // already applied
		}
	}
	st.Attendance = append(st.Attendance, entry)
	return nil
}

func (s *studentStore) RemoveAttendance(_ context.Context, studentID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return store.ErrNotFound
	}
	kept := st.Attendance[:0]
	for _, e := range st.Attendance {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	st.Attendance = kept
	return nil
}

func (s *studentStore) find(match func(*types.Student) bool) (*types.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if match(st) {
			return copyStudent(st), nil
		}
	}
	return nil, store.ErrNotFound
}

// sessions

type sessionStore Store

func copySession(cs *types.ClassSession) *types.ClassSession {
	cp := *cs
	cp.ActiveTokens = append([]types.ActiveToken(nil), cs.ActiveTokens...)
	cp.CheckedIn = append([]types.CheckIn(nil), cs.CheckedIn...)
	if cs.ClosedAt != nil {
		t := *cs.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

func (s *sessionStore) Create(_ context.Context, session *types.ClassSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return store.ErrDuplicate
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *sessionStore) GetByID(_ context.Context, id string) (*types.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cs, ok := s.sessions[id]; ok {
		return copySession(cs), nil
	}
	return nil, store.ErrNotFound
}

func (s *sessionStore) GetOpenByClass(_ context.Context, classID string) (*types.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.sessions {
		if cs.ClassID == classID && cs.Status == types.SessionStatusOpen {
			return copySession(cs), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *sessionStore) ListOpen(_ context.Context) ([]*types.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.ClassSession
	for _, cs := range s.sessions {
		if cs.Status == types.SessionStatusOpen {
			out = append(out, copySession(cs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *sessionStore) ListByClass(_ context.Context, classID string) ([]*types.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.ClassSession
	for _, cs := range s.sessions {
		if cs.ClassID == classID {
			out = append(out, copySession(cs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *sessionStore) AppendToken(_ context.Context, sessionID string, token types.ActiveToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if cs.Status != types.SessionStatusOpen {
		return nil // late tick against a closed session, tolerated
	}
	cs.ActiveTokens = append(cs.ActiveTokens, token)
	return nil
}

func (s *sessionStore) AppendCheckIn(_ context.Context, sessionID string, checkIn types.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if cs.HasCheckedIn(checkIn.StudentID) {
		return nil // already applied
	}
	cs.CheckedIn = append(cs.CheckedIn, checkIn)
	return nil
}

func (s *sessionStore) RemoveCheckIn(_ context.Context, sessionID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	kept := cs.CheckedIn[:0]
	for _, c := range cs.CheckedIn {
		if c.StudentID != studentID {
			kept = append(kept, c)
		}
	}
	cs.CheckedIn = kept
	return nil
}

func (s *sessionStore) Close(_ context.Context, sessionID string, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if cs.Status == types.SessionStatusClosed {
		return nil
	}
	cs.Status = types.SessionStatusClosed
	cs.ClosedAt = &closedAt
	cs.ActiveTokens = nil
	return nil
}

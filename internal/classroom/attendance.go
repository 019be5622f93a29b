package classroom

import (
	"context"
	"time"

	"rollcall/pkg/types"
)

// ClassStats summarizes a student's attendance in one class.
type ClassStats struct {
	ClassID    string  `json:"classId"`
	ClassName  string  `json:"className"`
	Attended   int     `json:"attended"`
	Held       int     `json:"held"`
	Percentage float64 `json:"percentage"`
}

// AttendanceStats is the per-class breakdown plus the overall percentage.
type AttendanceStats struct {
	Classes []ClassStats `json:"classes"`
	Overall float64      `json:"overall"`
}

// RosterEntry is one absent student in a session roster view.
type RosterEntry struct {
	StudentID string `json:"studentId"`
	SRN       string `json:"srn"`
	Name      string `json:"name"`
}

// SessionRoster is a teacher's view of one session: who checked in and who
// on the roster did not.
type SessionRoster struct {
	Session *types.ClassSession `json:"session"`
	Present []types.CheckIn     `json:"present"`
	Absent  []RosterEntry       `json:"absent"`
}

// Attendance returns the student's full check-in history.
func (s *Service) Attendance(ctx context.Context, studentID string) ([]types.AttendanceEntry, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return student.Attendance, nil
}

// AttendanceByClass filters the history to one class.
func (s *Service) AttendanceByClass(ctx context.Context, studentID, classID string) ([]types.AttendanceEntry, error) {
	all, err := s.Attendance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var out []types.AttendanceEntry
	for _, e := range all {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AttendanceByDate filters the history to one calendar day, in day's
// location.
func (s *Service) AttendanceByDate(ctx context.Context, studentID string, day time.Time) ([]types.AttendanceEntry, error) {
	all, err := s.Attendance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var out []types.AttendanceEntry
	for _, e := range all {
		at := e.RecordedAt.In(day.Location())
		if !at.Before(start) && at.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Stats computes the student's per-class attendance percentages against the
// number of sessions each class has held.
func (s *Service) Stats(ctx context.Context, studentID string) (*AttendanceStats, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	attended := make(map[string]int)
	for _, e := range student.Attendance {
		attended[e.ClassID]++
	}

	stats := &AttendanceStats{Classes: []ClassStats{}}
	totalAttended, totalHeld := 0, 0
	for _, ref := range student.Classes {
		sessions, err := s.store.Sessions().ListByClass(ctx, ref.ClassID)
		if err != nil {
			return nil, err
		}
		held := len(sessions)
		got := attended[ref.ClassID]
		cs := ClassStats{
			ClassID:   ref.ClassID,
			ClassName: ref.ClassName,
			Attended:  got,
			Held:      held,
		}
		if held > 0 {
			cs.Percentage = 100 * float64(got) / float64(held)
		}
		stats.Classes = append(stats.Classes, cs)
		totalAttended += got
		totalHeld += held
	}
	if totalHeld > 0 {
		stats.Overall = 100 * float64(totalAttended) / float64(totalHeld)
	}
	return stats, nil
}

// Roster builds the present/absent split for one session of a class the
// teacher owns.
func (s *Service) Roster(ctx context.Context, teacherID, classID, sessionID string) (*SessionRoster, error) {
	_, class, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ClassID != classID {
		return nil, ErrClassNotFound
	}

	roster := &SessionRoster{
		Session: sess,
		Present: sess.CheckedIn,
		Absent:  []RosterEntry{},
	}
	for _, id := range class.StudentIDs {
		if sess.HasCheckedIn(id) {
			continue
		}
		student, err := s.store.Students().GetByID(ctx, id)
		if err != nil {
			continue
		}
		roster.Absent = append(roster.Absent, RosterEntry{
			StudentID: student.ID,
			SRN:       student.SRN,
			Name:      student.Name,
		})
	}
	return roster, nil
}

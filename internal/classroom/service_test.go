package classroom

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rollcall/internal/store/inmem"
	"rollcall/pkg/types"
)

type fixture struct {
	svc     *Service
	store   *inmem.Store
	teacher *types.Teacher
	student *types.Student
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := inmem.New()

	if err := st.Admins().Create(ctx, &types.Admin{
		ID:           "admin-1",
		Email:        "dean@u.edu",
		Organization: "State University",
		Policy:       types.OrganizationPolicy{IPVerification: true, AllowedIP: "198.51.100.7"},
	}); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	teacher := &types.Teacher{
		ID:           "teacher-1",
		Name:         "Grace Hopper",
		Email:        "grace@u.edu",
		Organization: "State University",
		Classes:      []types.Class{},
	}
	if err := st.Teachers().Create(ctx, teacher); err != nil {
		t.Fatalf("failed to seed teacher: %v", err)
	}

	student := &types.Student{
		ID:         "student-1",
		Name:       "Ada Lovelace",
		Email:      "ada@u.edu",
		University: "State University",
		SRN:        "SRN001",
	}
	if err := st.Students().Create(ctx, student); err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}

	return &fixture{svc: New(st, nil), store: st, teacher: teacher, student: student}
}

func TestCreateAndRenameClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	class, err := f.svc.CreateClass(ctx, "teacher-1", "Algorithms")
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	if class.ID == "" || class.Name != "Algorithms" {
		t.Errorf("class = %+v", class)
	}

	if _, err := f.svc.CreateClass(ctx, "teacher-1", "Algorithms"); !errors.Is(err, ErrDuplicateClass) {
		t.Fatalf("duplicate class name = %v, want ErrDuplicateClass", err)
	}

	renamed, err := f.svc.RenameClass(ctx, "teacher-1", class.ID, "Advanced Algorithms")
	if err != nil {
		t.Fatalf("RenameClass failed: %v", err)
	}
	if renamed.Name != "Advanced Algorithms" {
		t.Errorf("renamed class = %+v", renamed)
	}

	if _, err := f.svc.RenameClass(ctx, "teacher-1", "missing", "X"); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("rename of unknown class = %v, want ErrClassNotFound", err)
	}
}

func TestRosterMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	class, err := f.svc.CreateClass(ctx, "teacher-1", "Algorithms")
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	if _, err := f.svc.AddStudent(ctx, "teacher-1", class.ID, "srn001"); err != nil {
		t.Fatalf("AddStudent failed: %v", err)
	}
	if _, err := f.svc.AddStudent(ctx, "teacher-1", class.ID, "SRN001"); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("duplicate AddStudent = %v, want ErrAlreadyEnrolled", err)
	}

	enrolled, err := f.svc.IsEnrolled(ctx, "student-1", class.ID)
	if err != nil || !enrolled {
		t.Fatalf("IsEnrolled = %v, %v; want true", enrolled, err)
	}

	// The student document gained a class reference.
	refs, err := f.svc.StudentClasses(ctx, "student-1")
	if err != nil {
		t.Fatalf("StudentClasses failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ClassID != class.ID || refs[0].ClassName != "Algorithms" {
		t.Errorf("class refs = %+v", refs)
	}

	if err := f.svc.RemoveStudent(ctx, "teacher-1", class.ID, "SRN001"); err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}
	if err := f.svc.RemoveStudent(ctx, "teacher-1", class.ID, "SRN001"); !errors.Is(err, ErrNotOnRoster) {
		t.Fatalf("second RemoveStudent = %v, want ErrNotOnRoster", err)
	}

	enrolled, err = f.svc.IsEnrolled(ctx, "student-1", class.ID)
	if err != nil || enrolled {
		t.Fatalf("IsEnrolled after removal = %v, %v; want false", enrolled, err)
	}
	refs, _ = f.svc.StudentClasses(ctx, "student-1")
	if len(refs) != 0 {
		t.Errorf("class refs after removal = %+v, want none", refs)
	}
}

func TestIsEnrolledUnknownClass(t *testing.T) {
	f := newFixture(t)
	enrolled, err := f.svc.IsEnrolled(context.Background(), "student-1", "missing")
	if err != nil {
		t.Fatalf("IsEnrolled failed: %v", err)
	}
	if enrolled {
		t.Error("enrolled in a class that does not exist")
	}
}

func TestClassInfoAndPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	class, err := f.svc.CreateClass(ctx, "teacher-1", "Algorithms")
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	info, err := f.svc.ClassInfo(ctx, class.ID)
	if err != nil {
		t.Fatalf("ClassInfo failed: %v", err)
	}
	if info.ClassName != "Algorithms" || info.TeacherID != "teacher-1" || info.Organization != "State University" {
		t.Errorf("info = %+v", info)
	}
	if _, err := f.svc.ClassInfo(ctx, "missing"); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("ClassInfo for unknown class = %v, want ErrClassNotFound", err)
	}

	policy, err := f.svc.Policy(ctx, class.ID)
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if !policy.IPVerification || policy.AllowedIP != "198.51.100.7" {
		t.Errorf("policy = %+v, want the admin's policy", policy)
	}
}

func TestStatsAndRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	class, err := f.svc.CreateClass(ctx, "teacher-1", "Algorithms")
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	if _, err := f.svc.AddStudent(ctx, "teacher-1", class.ID, "SRN001"); err != nil {
		t.Fatalf("AddStudent failed: %v", err)
	}
	absentee := &types.Student{
		ID: "student-2", Name: "Alan Turing", University: "State University", SRN: "SRN002",
		Email: "alan@u.edu",
	}
	if err := f.store.Students().Create(ctx, absentee); err != nil {
		t.Fatalf("failed to seed second student: %v", err)
	}
	if _, err := f.svc.AddStudent(ctx, "teacher-1", class.ID, "SRN002"); err != nil {
		t.Fatalf("AddStudent failed: %v", err)
	}

	// Two sessions held; student-1 attended the first only.
	opened := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, checkedIn := range [][]types.CheckIn{
		{{StudentID: "student-1", SRN: "SRN001", Name: "Ada Lovelace", CheckedInAt: opened}},
		{},
	} {
		sess := &types.ClassSession{
			ID:        fmt.Sprintf("sess-%d", i+1),
			ClassID:   class.ID,
			ClassName: "Algorithms",
			TeacherID: "teacher-1",
			OpenedAt:  opened.AddDate(0, 0, i),
			Status:    types.SessionStatusClosed,
			CheckedIn: checkedIn,
		}
		if err := f.store.Sessions().Create(ctx, sess); err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
	}
	if err := f.store.Students().AppendAttendance(ctx, "student-1", types.AttendanceEntry{
		SessionID: "sess-1", ClassID: class.ID, ClassName: "Algorithms", RecordedAt: opened,
	}); err != nil {
		t.Fatalf("AppendAttendance failed: %v", err)
	}

	stats, err := f.svc.Stats(ctx, "student-1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats.Classes) != 1 {
		t.Fatalf("stats classes = %d, want 1", len(stats.Classes))
	}
	cs := stats.Classes[0]
	if cs.Attended != 1 || cs.Held != 2 || cs.Percentage != 50 {
		t.Errorf("class stats = %+v, want 1/2 = 50%%", cs)
	}
	if stats.Overall != 50 {
		t.Errorf("overall = %v, want 50", stats.Overall)
	}

	roster, err := f.svc.Roster(ctx, "teacher-1", class.ID, "sess-1")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(roster.Present) != 1 || roster.Present[0].StudentID != "student-1" {
		t.Errorf("present = %+v, want [student-1]", roster.Present)
	}
	if len(roster.Absent) != 1 || roster.Absent[0].StudentID != "student-2" {
		t.Errorf("absent = %+v, want [student-2]", roster.Absent)
	}

	byDate, err := f.svc.AttendanceByDate(ctx, "student-1", opened)
	if err != nil {
		t.Fatalf("AttendanceByDate failed: %v", err)
	}
	if len(byDate) != 1 {
		t.Errorf("attendance on %v = %d entries, want 1", opened, len(byDate))
	}
	if entries, _ := f.svc.AttendanceByDate(ctx, "student-1", opened.AddDate(0, 0, 5)); len(entries) != 0 {
		t.Errorf("attendance on a day without check-ins = %+v", entries)
	}
}

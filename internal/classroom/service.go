// Package classroom manages teacher-owned classes and rosters, and answers
// the enrollment and attendance queries the rest of the platform asks.
package classroom

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/session"
	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// Service owns class and roster state. It also implements the session
// engine's Roster interface: enrollment, class context and org policy all
// resolve through here.
type Service struct {
	store store.Store
	now   func() time.Time
}

var _ session.Roster = (*Service)(nil)

func New(st store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now}
}

// ownedClass loads the teacher and checks classID belongs to them.
func (s *Service) ownedClass(ctx context.Context, teacherID, classID string) (*types.Teacher, *types.Class, error) {
	teacher, err := s.store.Teachers().GetByID(ctx, teacherID)
	if err != nil {
		return nil, nil, err
	}
	class, ok := teacher.ClassByID(classID)
	if !ok {
		return nil, nil, ErrClassNotFound
	}
	return teacher, class, nil
}

// CreateClass adds a class to the teacher's embedded class list. Names are
// unique per teacher.
func (s *Service) CreateClass(ctx context.Context, teacherID, name string) (*types.Class, error) {
	teacher, err := s.store.Teachers().GetByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	for _, c := range teacher.Classes {
		if c.Name == name {
			return nil, ErrDuplicateClass
		}
	}

	class := types.Class{
		ID:         uuid.NewString(),
		Name:       name,
		StudentIDs: []string{},
	}
	teacher.Classes = append(teacher.Classes, class)
	teacher.UpdatedAt = s.now()
	if err := s.store.Teachers().Update(ctx, teacher); err != nil {
		return nil, err
	}
	return &class, nil
}

// RenameClass changes the class display name.
func (s *Service) RenameClass(ctx context.Context, teacherID, classID, name string) (*types.Class, error) {
	teacher, class, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	for _, c := range teacher.Classes {
		if c.ID != classID && c.Name == name {
			return nil, ErrDuplicateClass
		}
	}
	class.Name = name
	teacher.UpdatedAt = s.now()
	if err := s.store.Teachers().Update(ctx, teacher); err != nil {
		return nil, err
	}
	cp := *class
	return &cp, nil
}

// AddStudent puts the student with this SRN on the roster. The student must
// belong to the teacher's organization, and both documents are updated: the
// class gains the student ID, the student gains a class reference.
func (s *Service) AddStudent(ctx context.Context, teacherID, classID, srn string) (*types.Class, error) {
	teacher, class, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}

	student, err := s.store.Students().GetBySRN(ctx, teacher.Organization, srn)
	if err != nil {
		return nil, err
	}
	if student.University != teacher.Organization {
		return nil, ErrWrongOrganization
	}
	if class.HasStudent(student.ID) {
		return nil, ErrAlreadyEnrolled
	}

	class.StudentIDs = append(class.StudentIDs, student.ID)
	teacher.UpdatedAt = s.now()
	if err := s.store.Teachers().Update(ctx, teacher); err != nil {
		return nil, err
	}

	student.Classes = append(student.Classes, types.ClassRef{
		ClassID:   class.ID,
		ClassName: class.Name,
		TeacherID: teacher.ID,
		AddedAt:   s.now(),
	})
	student.UpdatedAt = s.now()
	if err := s.store.Students().Update(ctx, student); err != nil {
		return nil, err
	}

	cp := *class
	return &cp, nil
}

// RemoveStudent takes the student with this SRN off the roster, updating
// both documents.
func (s *Service) RemoveStudent(ctx context.Context, teacherID, classID, srn string) error {
	teacher, class, err := s.ownedClass(ctx, teacherID, classID)
	if err != nil {
		return err
	}

	student, err := s.store.Students().GetBySRN(ctx, teacher.Organization, srn)
	if err != nil {
		return err
	}
	if !class.HasStudent(student.ID) {
		return ErrNotOnRoster
	}

	kept := class.StudentIDs[:0]
	for _, id := range class.StudentIDs {
		if id != student.ID {
			kept = append(kept, id)
		}
	}
	class.StudentIDs = kept
	teacher.UpdatedAt = s.now()
	if err := s.store.Teachers().Update(ctx, teacher); err != nil {
		return err
	}

	refs := student.Classes[:0]
	for _, ref := range student.Classes {
		if ref.ClassID != classID {
			refs = append(refs, ref)
		}
	}
	student.Classes = refs
	student.UpdatedAt = s.now()
	return s.store.Students().Update(ctx, student)
}

// VerifyOwner checks the teacher owns the class.
func (s *Service) VerifyOwner(ctx context.Context, teacherID, classID string) error {
	_, _, err := s.ownedClass(ctx, teacherID, classID)
	return err
}

// StudentClasses lists the classes a student is enrolled in.
func (s *Service) StudentClasses(ctx context.Context, studentID string) ([]types.ClassRef, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return student.Classes, nil
}

// ClassSessions returns the session history for a class the teacher owns.
func (s *Service) ClassSessions(ctx context.Context, teacherID, classID string) ([]*types.ClassSession, error) {
	if _, _, err := s.ownedClass(ctx, teacherID, classID); err != nil {
		return nil, err
	}
	return s.store.Sessions().ListByClass(ctx, classID)
}

// IsEnrolled answers roster membership for the scan path.
func (s *Service) IsEnrolled(ctx context.Context, studentID, classID string) (bool, error) {
	teacher, err := s.store.Teachers().GetByClassID(ctx, classID)
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	class, ok := teacher.ClassByID(classID)
	if !ok {
		return false, nil
	}
	return class.HasStudent(studentID), nil
}

// ClassInfo resolves the class context a new session is opened with.
func (s *Service) ClassInfo(ctx context.Context, classID string) (session.OpenInfo, error) {
	teacher, err := s.store.Teachers().GetByClassID(ctx, classID)
	if err != nil {
		if err == store.ErrNotFound {
			return session.OpenInfo{}, ErrClassNotFound
		}
		return session.OpenInfo{}, err
	}
	class, _ := teacher.ClassByID(classID)
	return session.OpenInfo{
		ClassID:      class.ID,
		ClassName:    class.Name,
		TeacherID:    teacher.ID,
		Organization: teacher.Organization,
	}, nil
}

// Policy resolves the organization policy governing the class.
func (s *Service) Policy(ctx context.Context, classID string) (types.OrganizationPolicy, error) {
	teacher, err := s.store.Teachers().GetByClassID(ctx, classID)
	if err != nil {
		return types.OrganizationPolicy{}, err
	}
	admin, err := s.store.Admins().GetByOrganization(ctx, teacher.Organization)
	if err != nil {
		return types.OrganizationPolicy{}, err
	}
	return admin.Policy, nil
}

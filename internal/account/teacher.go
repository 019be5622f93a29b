package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// TeacherInput is the admin-provided teacher account input.
type TeacherInput struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Phone      string `json:"phone"`
	TRN        string `json:"trn" validate:"required"`
	Department string `json:"department"`
}

// CreateTeacher registers a teacher under the admin's organization. Only
// admins create teachers; teachers never self-register.
func (s *Service) CreateTeacher(ctx context.Context, adminID string, in TeacherInput) (*types.Teacher, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	token, err := newEmailToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	teacher := &types.Teacher{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Phone:        in.Phone,
		TRN:          strings.ToUpper(strings.TrimSpace(in.TRN)),
		Organization: admin.Organization,
		Department:   in.Department,
		Role:         types.RoleTeacher,
		EmailToken:   token,
		Classes:      []types.Class{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Teachers().Create(ctx, teacher); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	s.sendVerificationEmail(teacher.Name, teacher.Email, "teachers", token)
	return teacher, nil
}

// VerifyTeacherEmail consumes a verification token.
func (s *Service) VerifyTeacherEmail(ctx context.Context, token string) error {
	teacher, err := s.store.Teachers().GetByEmailToken(ctx, token)
	if err != nil {
		return ErrInvalidEmailToken
	}
	teacher.Verified = true
	teacher.EmailToken = ""
	teacher.UpdatedAt = s.now()
	return s.store.Teachers().Update(ctx, teacher)
}

// LoginTeacher checks credentials and returns the account with a signed JWT.
func (s *Service) LoginTeacher(ctx context.Context, email, password string) (*types.Teacher, string, error) {
	teacher, err := s.store.Teachers().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !checkPassword(teacher.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !teacher.Verified {
		return nil, "", ErrEmailNotVerified
	}
	token, err := s.issueAuthToken(teacher.ID, types.RoleTeacher, teacher.Organization, teacher.Email)
	if err != nil {
		return nil, "", err
	}
	return teacher, token, nil
}

// ForgotTeacherPassword emails a reset link; unknown addresses are ignored.
func (s *Service) ForgotTeacherPassword(ctx context.Context, email string) error {
	teacher, err := s.store.Teachers().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}
	token, err := s.issueResetToken(teacher.ID, teacher.PasswordHash)
	if err != nil {
		return err
	}
	s.sendResetEmail(teacher.Name, teacher.Email, "teachers", token)
	return nil
}

// ResetTeacherPassword consumes a reset token and installs the new password.
func (s *Service) ResetTeacherPassword(ctx context.Context, token, newPassword string) error {
	id, err := s.parseResetToken(token, func(id string) (string, error) {
		teacher, err := s.store.Teachers().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return teacher.PasswordHash, nil
	})
	if err != nil {
		return err
	}

	teacher, err := s.store.Teachers().GetByID(ctx, id)
	if err != nil {
		return ErrInvalidResetToken
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	teacher.PasswordHash = hash
	teacher.UpdatedAt = s.now()
	return s.store.Teachers().Update(ctx, teacher)
}

// TeacherUpdate carries the mutable teacher profile fields.
type TeacherUpdate struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

// UpdateTeacher applies the mutable profile fields; empty fields are left
// untouched. The admin must own the teacher's organization.
func (s *Service) UpdateTeacher(ctx context.Context, adminID, teacherID string, in TeacherUpdate) (*types.Teacher, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	teacher, err := s.store.Teachers().GetByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if teacher.Organization != admin.Organization {
		return nil, ErrWrongOrganization
	}
	if in.Name != "" {
		teacher.Name = in.Name
	}
	if in.Phone != "" {
		teacher.Phone = in.Phone
	}
	if in.Department != "" {
		teacher.Department = in.Department
	}
	teacher.UpdatedAt = s.now()
	if err := s.store.Teachers().Update(ctx, teacher); err != nil {
		return nil, err
	}
	return teacher, nil
}

// GetTeacher returns the teacher profile.
func (s *Service) GetTeacher(ctx context.Context, id string) (*types.Teacher, error) {
	return s.store.Teachers().GetByID(ctx, id)
}

// GetTeacherByTRN resolves a teacher by registration number within an org.
func (s *Service) GetTeacherByTRN(ctx context.Context, org, trn string) (*types.Teacher, error) {
	return s.store.Teachers().GetByTRN(ctx, org, strings.ToUpper(strings.TrimSpace(trn)))
}

// ListTeachers returns every teacher in the admin's organization.
func (s *Service) ListTeachers(ctx context.Context, adminID string) ([]*types.Teacher, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return s.store.Teachers().ListByOrganization(ctx, admin.Organization)
}

// DeleteTeacher removes a teacher account. The admin must own the teacher's
// organization.
func (s *Service) DeleteTeacher(ctx context.Context, adminID, teacherID string) error {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	teacher, err := s.store.Teachers().GetByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if teacher.Organization != admin.Organization {
		return ErrWrongOrganization
	}
	return s.store.Teachers().Delete(ctx, teacherID)
}

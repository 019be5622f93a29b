package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// StudentSignup is the self-registration input. University must name a
// registered organization.
type StudentSignup struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Phone      string `json:"phone"`
	University string `json:"university" validate:"required"`
	Department string `json:"department"`
	SRN        string `json:"srn" validate:"required"`
}

// StudentUpdate carries the mutable profile fields.
type StudentUpdate struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

// SignupStudent registers a student within an existing organization. SRNs
// are stored uppercased and are unique per organization.
func (s *Service) SignupStudent(ctx context.Context, in StudentSignup) (*types.Student, error) {
	university := strings.TrimSpace(in.University)
	if _, err := s.store.Admins().GetByOrganization(ctx, university); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownOrganization
		}
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
	student := &types.Student{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Phone:        in.Phone,
		University:   university,
		Department:   in.Department,
		SRN:          strings.ToUpper(strings.TrimSpace(in.SRN)),
		Role:         types.RoleStudent,
		EmailToken:   token,
		Classes:      []types.ClassRef{},
		Attendance:   []types.AttendanceEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Students().Create(ctx, student); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	s.sendVerificationEmail(student.Name, student.Email, "students", token)
	return student, nil
}

// VerifyStudentEmail consumes a verification token.
func (s *Service) VerifyStudentEmail(ctx context.Context, token string) error {
	student, err := s.store.Students().GetByEmailToken(ctx, token)
	if err != nil {
		return ErrInvalidEmailToken
	}
	student.Verified = true
	student.EmailToken = ""
	student.UpdatedAt = s.now()
	return s.store.Students().Update(ctx, student)
}

// LoginStudent checks credentials and returns the account with a signed JWT.
func (s *Service) LoginStudent(ctx context.Context, email, password string) (*types.Student, string, error) {
	student, err := s.store.Students().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !checkPassword(student.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !student.Verified {
		return nil, "", ErrEmailNotVerified
	}
	token, err := s.issueAuthToken(student.ID, types.RoleStudent, student.University, student.Email)
	if err != nil {
		return nil, "", err
	}
	return student, token, nil
}

// ForgotStudentPassword emails a reset link; unknown addresses are ignored.
func (s *Service) ForgotStudentPassword(ctx context.Context, email string) error {
	student, err := s.store.Students().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}
	token, err := s.issueResetToken(student.ID, student.PasswordHash)
	if err != nil {
		return err
	}
	s.sendResetEmail(student.Name, student.Email, "students", token)
	return nil
}

// ResetStudentPassword consumes a reset token and installs the new password.
func (s *Service) ResetStudentPassword(ctx context.Context, token, newPassword string) error {
	id, err := s.parseResetToken(token, func(id string) (string, error) {
		student, err := s.store.Students().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return student.PasswordHash, nil
	})
	if err != nil {
		return err
	}

	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return ErrInvalidResetToken
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	student.PasswordHash = hash
	student.UpdatedAt = s.now()
	return s.store.Students().Update(ctx, student)
}

// GetStudent returns the student profile.
func (s *Service) GetStudent(ctx context.Context, id string) (*types.Student, error) {
	return s.store.Students().GetByID(ctx, id)
}

// UpdateStudent applies the mutable profile fields; empty fields are left
// untouched.
func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentUpdate) (*types.Student, error) {
	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		student.Name = in.Name
	}
	if in.Phone != "" {
		student.Phone = in.Phone
	}
	if in.Department != "" {
		student.Department = in.Department
	}
	student.UpdatedAt = s.now()
	if err := s.store.Students().Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// ListStudents returns every student in the admin's organization.
func (s *Service) ListStudents(ctx context.Context, adminID string) ([]*types.Student, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return s.store.Students().ListByOrganization(ctx, admin.Organization)
}

package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/store"
	"rollcall/pkg/types"
)

// AdminSignup is the organization registration input.
type AdminSignup struct {
	Username     string `json:"username" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Organization string `json:"organization" validate:"required"`
}

// SignupAdmin registers an organization and its owner account. The
// organization name is the tenant key: one admin per organization.
func (s *Service) SignupAdmin(ctx context.Context, in AdminSignup) (*types.Admin, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	token, err := newEmailToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	admin := &types.Admin{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Organization: strings.TrimSpace(in.Organization),
		Role:         types.RoleAdmin,
		EmailToken:   token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Admins().Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	s.sendVerificationEmail(admin.Username, admin.Email, "admin", token)
	return admin, nil
}

// VerifyAdminEmail consumes a verification token.
func (s *Service) VerifyAdminEmail(ctx context.Context, token string) error {
	admin, err := s.store.Admins().GetByEmailToken(ctx, token)
	if err != nil {
		return ErrInvalidEmailToken
	}
	admin.Verified = true
	admin.EmailToken = ""
	admin.UpdatedAt = s.now()
	return s.store.Admins().Update(ctx, admin)
}

// LoginAdmin checks credentials and returns the account with a signed JWT.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (*types.Admin, string, error) {
	admin, err := s.store.Admins().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !checkPassword(admin.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !admin.Verified {
		return nil, "", ErrEmailNotVerified
	}
	token, err := s.issueAuthToken(admin.ID, types.RoleAdmin, admin.Organization, admin.Email)
	if err != nil {
		return nil, "", err
	}
	return admin, token, nil
}

// ForgotAdminPassword emails a reset link. An unknown address is not an
// error; the response never reveals whether an account exists.
func (s *Service) ForgotAdminPassword(ctx context.Context, email string) error {
	admin, err := s.store.Admins().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}
	token, err := s.issueResetToken(admin.ID, admin.PasswordHash)
	if err != nil {
		return err
	}
	s.sendResetEmail(admin.Username, admin.Email, "admin", token)
	return nil
}

// ResetAdminPassword consumes a reset token and installs the new password.
func (s *Service) ResetAdminPassword(ctx context.Context, token, newPassword string) error {
	id, err := s.parseResetToken(token, func(id string) (string, error) {
		admin, err := s.store.Admins().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return admin.PasswordHash, nil
	})
	if err != nil {
		return err
	}

	admin, err := s.store.Admins().GetByID(ctx, id)
	if err != nil {
		return ErrInvalidResetToken
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	admin.PasswordHash = hash
	admin.UpdatedAt = s.now()
	return s.store.Admins().Update(ctx, admin)
}

// GetAdmin returns the admin profile.
func (s *Service) GetAdmin(ctx context.Context, id string) (*types.Admin, error) {
	return s.store.Admins().GetByID(ctx, id)
}

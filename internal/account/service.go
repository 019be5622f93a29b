// Package account manages the three account roles (admin, teacher, student):
// signup, email verification, login, password reset, profile maintenance and
// the admin-owned organization check-in policy.
package account

import (
	"fmt"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	intmail "rollcall/internal/mail"
	"rollcall/internal/store"
)

// Service owns all account flows. It issues the platform's JWTs and sends
// verification and reset email through the injected mail service.
type Service struct {
	store   store.Store
	mail    intmail.Service
	secret  string
	baseURL string
	authTTL time.Duration
	now     func() time.Time
}

// Config wires the service.
type Config struct {
	Store   store.Store
	Mail    intmail.Service
	Secret  string
	BaseURL string // frontend base for links in email
	AuthTTL time.Duration
	Now     func() time.Time
}

func New(cfg Config) *Service {
	if cfg.AuthTTL <= 0 {
		cfg.AuthTTL = DefaultAuthTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		mail:    cfg.Mail,
		secret:  cfg.Secret,
		baseURL: cfg.BaseURL,
		authTTL: cfg.AuthTTL,
		now:     cfg.Now,
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Service) sendVerificationEmail(name, address, role, token string) {
	link := fmt.Sprintf("%s/%s/verify-email?token=%s", s.baseURL, role, token)
	s.mail.Send(&intmail.Message{
		To:      mail.Address{Name: name, Address: address},
		Subject: "Verify your email address",
		Text:    "Welcome to Rollcall. Confirm your email address by opening:\n\n" + link,
	})
}

func (s *Service) sendResetEmail(name, address, role, token string) {
	link := fmt.Sprintf("%s/%s/reset-password?token=%s", s.baseURL, role, token)
	s.mail.Send(&intmail.Message{
		To:      mail.Address{Name: name, Address: address},
		Subject: "Reset your password",
		Text:    "A password reset was requested for your account. The link is valid for 5 minutes:\n\n" + link,
	})
}

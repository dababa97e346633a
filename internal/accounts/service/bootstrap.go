package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

var ErrBootstrapNoPassword = errors.New("no admin password configured")

// BootstrapService seeds the first administrator at startup.
type BootstrapService struct {
	Users *UserService

	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// EnsureAdmin creates the configured admin account when no Admin exists.
// It reports whether an account was created. Without a configured password
// nothing is seeded and ErrBootstrapNoPassword is returned for the caller
// to log; there is no fallback password.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) (bool, error) {
	l := slogx.FromContextOr(ctx, s.Users.Logger)

	admins, err := s.Users.Store.Users().CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	if admins > 0 {
		l.Debug("admin already present, skipping bootstrap", slog.Int64("admins", admins))
		return false, nil
	}

	if s.Password == "" {
		return false, ErrBootstrapNoPassword
	}

	u, err := s.Users.Register(ctx, &domain.RegisterInput{
		Username:  s.Username,
		Email:     s.Email,
		Password:  s.Password,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Role:      domain.RoleAdmin,
	})
	if err != nil {
		return false, err
	}

	l.Info("bootstrapped admin account", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return true, nil
}

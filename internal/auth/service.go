package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

// RoleGranter inserts role assignment rows. The authz repository
// satisfies it.
type RoleGranter interface {
	InsertRoleAssignment(ctx context.Context, id uuid.UUID, role authz.Role) error
}

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	roles RoleGranter
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleGranter) *Service {
	return &Service{repo: repo, roles: roles}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive || user.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ExternalIdentity carries the verified claims of an OIDC sign-in.
type ExternalIdentity struct {
	Subject  string
	Email    string
	FullName string
}

// SignInExternal finds or creates the principal for a verified external
// identity. A first sign-in creates the users row and grants the default
// counselee role.
func (s *Service) SignInExternal(ctx context.Context, ident ExternalIdentity) (*User, error) {
	email := strings.TrimSpace(ident.Email)
	if email == "" {
		return nil, errors.New("auth: external identity missing email")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if !user.IsActive {
			return nil, shared.ErrInvalidCredentials
		}
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	user = &User{
		ID:       uuid.New(),
		Email:    email,
		FullName: ident.FullName,
		IsActive: true,
		Metadata: map[string]any{"oidc_subject": ident.Subject},
	}
	if err := s.repo.CreateUser(ctx, *user); err != nil {
		return nil, err
	}
	if s.roles != nil {
		// Default grant for brand-new principals. A concurrent first
		// sign-in may have won the race; that is fine.
		if err := s.roles.InsertRoleAssignment(ctx, user.ID, authz.RoleCounselee); err != nil && !errors.Is(err, authz.ErrDuplicateAssignment) {
			return nil, err
		}
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

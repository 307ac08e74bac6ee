package counselors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

// RoleGranter inserts role assignment rows. The authz repository
// satisfies it.
type RoleGranter interface {
	InsertRoleAssignment(ctx context.Context, id uuid.UUID, role authz.Role) error
}

// Service handles counselor profile business logic.
type Service struct {
	repo   RepositoryPort
	roles  RoleGranter
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleGranter, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, audit: audit, logger: logger}
}

// ListProfiles returns all counselor profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]ProfileSummary, error) {
	return s.repo.ListProfiles(ctx)
}

// GetProfile fetches the profile owned by userID.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileSummary, error) {
	return s.repo.GetProfileByUser(ctx, userID)
}

// CreateProfile creates a counselor profile and grants the counselor
// role explicitly, so later resolutions never need the profile-derived
// fallback for this user.
func (s *Service) CreateProfile(ctx context.Context, actorID, userID uuid.UUID, input ProfileInput) (*Profile, error) {
	if input.MaxCounselees <= 0 {
		return nil, errors.New("counselors: max counselees must be positive")
	}

	profile := Profile{
		ID:             uuid.New(),
		UserID:         userID,
		Specialties:    input.Specialties,
		Bio:            input.Bio,
		MaxCounselees:  input.MaxCounselees,
		IsAcceptingNew: input.IsAcceptingNew,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	if s.roles != nil {
		if err := s.roles.InsertRoleAssignment(ctx, userID, authz.RoleCounselor); err != nil && !errors.Is(err, authz.ErrDuplicateAssignment) {
			return nil, err
		}
	}

	s.recordAudit(ctx, actorID, "counselor_profile.create", userID)
	return &profile, nil
}

// UpdateProfile updates the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, actorID, userID uuid.UUID, input ProfileInput) error {
	if input.MaxCounselees <= 0 {
		return errors.New("counselors: max counselees must be positive")
	}
	if err := s.repo.UpdateProfile(ctx, userID, input); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "counselor_profile.update", userID)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, userID uuid.UUID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "counselor_profile",
		EntityID: userID.String(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

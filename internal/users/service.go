package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

// BackfillEnqueuer schedules an asynchronous role backfill sweep.
type BackfillEnqueuer interface {
	EnqueueRoleBackfill(ctx context.Context) error
}

// Service handles account administration business logic.
type Service struct {
	repo     RepositoryPort
	audit    *shared.AuditLogger
	backfill BackfillEnqueuer
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, backfill BackfillEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, backfill: backfill, logger: logger}
}

// ListAccounts returns a page of accounts with pagination metadata.
func (s *Service) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, shared.Pagination, error) {
	accounts, total, err := s.repo.ListAccounts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return accounts, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetAccount fetches a single account.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// CreateAccount registers a new account with an optional password and
// initial role assignments.
func (s *Service) CreateAccount(ctx context.Context, actorID uuid.UUID, input NewAccount) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("users: email required")
	}

	var hash string
	if input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = string(hashed)
	}

	account := Account{
		ID:       uuid.New(),
		Email:    email,
		FullName: strings.TrimSpace(input.FullName),
		IsActive: true,
		Roles:    dedupeRoles(input.Roles),
	}
	if err := s.repo.CreateAccount(ctx, account, hash); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "account.create", account.ID, map[string]any{"email": email})
	return &account, nil
}

// GrantRole adds an explicit assignment row.
func (s *Service) GrantRole(ctx context.Context, actorID, userID uuid.UUID, role authz.Role) error {
	if err := s.repo.GrantRole(ctx, userID, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "role.grant", userID, map[string]any{"role": string(role)})
	return nil
}

// RevokeRole removes an assignment row. The legacy column and counselor
// profile are left alone; resolution may re-derive the role from them.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID uuid.UUID, role authz.Role) error {
	if err := s.repo.RevokeRole(ctx, userID, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "role.revoke", userID, map[string]any{"role": string(role)})
	return nil
}

// SetActive toggles account availability.
func (s *Service) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	action := "account.deactivate"
	if active {
		action = "account.activate"
	}
	s.recordAudit(ctx, actorID, action, userID, nil)
	return nil
}

// TriggerRoleBackfill schedules the background sweep that materialises
// assignment rows from the legacy column and counselor profiles.
func (s *Service) TriggerRoleBackfill(ctx context.Context, actorID uuid.UUID) error {
	if s.backfill == nil {
		return errors.New("users: backfill queue not configured")
	}
	if err := s.backfill.EnqueueRoleBackfill(ctx); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "roles.backfill", actorID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func dedupeRoles(roles []authz.Role) []authz.Role {
	seen := make(map[authz.Role]struct{}, len(roles))
	var out []authz.Role
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

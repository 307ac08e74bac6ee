package counselees

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-care/brightpath/internal/counselors"
	"github.com/brightpath-care/brightpath/internal/intake"
	"github.com/brightpath-care/brightpath/internal/shared"
)

var (
	// ErrCounselorNotAccepting indicates the counselor closed intake.
	ErrCounselorNotAccepting = errors.New("counselees: counselor not accepting new counselees")
	// ErrCounselorAtCapacity indicates the counselor is full.
	ErrCounselorAtCapacity = errors.New("counselees: counselor at capacity")
)

// CounselorDirectory looks up counselor profiles for capacity checks.
// The counselors repository satisfies it.
type CounselorDirectory interface {
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*counselors.ProfileSummary, error)
}

// SubmissionReader fetches intake submissions for account generation.
// The intake repository satisfies it.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, id uuid.UUID) (*intake.Submission, error)
}

// Service handles counselee assignment business logic.
type Service struct {
	repo        RepositoryPort
	counselors  CounselorDirectory
	submissions SubmissionReader
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, directory CounselorDirectory, submissions SubmissionReader, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, counselors: directory, submissions: submissions, audit: audit, logger: logger}
}

// ListCounselees returns a page of counselee profiles.
func (s *Service) ListCounselees(ctx context.Context, filter ListFilter) ([]Summary, shared.Pagination, error) {
	summaries, total, err := s.repo.ListProfiles(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return summaries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetOwnProfile fetches the profile for the counselee portal.
func (s *Service) GetOwnProfile(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	return s.repo.GetProfileByUser(ctx, userID)
}

// AssignCounselor attaches a counselee to a counselor after checking
// the counselor accepts new counselees and has free capacity.
func (s *Service) AssignCounselor(ctx context.Context, actorID, counseleeUserID, counselorUserID uuid.UUID) error {
	if err := s.checkCapacity(ctx, counselorUserID); err != nil {
		return err
	}
	if err := s.repo.AssignCounselor(ctx, counseleeUserID, counselorUserID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "counselee.assign", counseleeUserID, map[string]any{"counselor_id": counselorUserID.String()})
	return nil
}

// UpdateStatus moves an assignment through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, actorID, counseleeUserID uuid.UUID, status AssignmentStatus) error {
	if err := s.repo.UpdateStatus(ctx, counseleeUserID, status); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "counselee.status", counseleeUserID, map[string]any{"status": string(status)})
	return nil
}

// GenerateAccountInput carries the fields for account generation from
// an intake submission.
type GenerateAccountInput struct {
	IntakeSubmissionID uuid.UUID
	Email              string
	FullName           string
}

// GenerateAccount creates a counselee account from an intake submission:
// a users row with a one-time random password, the counselee role
// assignment and a profile linked to the submission, assigned to the
// generating counselor.
func (s *Service) GenerateAccount(ctx context.Context, counselorID uuid.UUID, input GenerateAccountInput) (*GeneratedAccount, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("counselees: email required")
	}

	if _, err := s.submissions.GetSubmission(ctx, input.IntakeSubmissionID); err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, counselorID); err != nil {
		return nil, err
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userID := uuid.New()
	submissionID := input.IntakeSubmissionID
	record := NewAccountRecord{
		UserID:       userID,
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: string(hash),
		Profile: Profile{
			ID:                  uuid.New(),
			UserID:              userID,
			IntakeSubmissionID:  &submissionID,
			AssignedCounselorID: &counselorID,
			AssignmentStatus:    StatusActive,
			AssignedAt:          &now,
		},
	}
	if err := s.repo.CreateAccountWithProfile(ctx, record); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, counselorID, "counselee.generate", userID, map[string]any{
		"intake_submission_id": submissionID.String(),
	})
	return &GeneratedAccount{UserID: userID, Email: email, Password: password}, nil
}

func (s *Service) checkCapacity(ctx context.Context, counselorID uuid.UUID) error {
	if s.counselors == nil {
		return nil
	}
	profile, err := s.counselors.GetProfileByUser(ctx, counselorID)
	if err != nil {
		return err
	}
	if !profile.IsAcceptingNew {
		return ErrCounselorNotAccepting
	}
	if profile.ActiveCounselees >= profile.MaxCounselees {
		return ErrCounselorAtCapacity
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "counselee_profile",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

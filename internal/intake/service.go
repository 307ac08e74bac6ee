package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/shared"
)

// DedupStore tracks processed delivery keys. shared.DeliveryDedup
// satisfies it.
type DedupStore interface {
	CheckAndInsert(ctx context.Context, key, source string) error
}

// NotifyEnqueuer schedules the admin notification for a new submission.
type NotifyEnqueuer interface {
	EnqueueIntakeNotification(ctx context.Context, submissionID uuid.UUID, formTitle string) error
}

// Service handles intake submission business logic.
type Service struct {
	repo   RepositoryPort
	dedup  DedupStore
	notify NotifyEnqueuer
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, dedup DedupStore, notify NotifyEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, dedup: dedup, notify: notify, logger: logger}
}

// Ingest stores an authenticated webhook delivery. Replayed deliveries
// are acknowledged without a second row; the bool result reports
// whether the delivery was a duplicate.
func (s *Service) Ingest(ctx context.Context, incoming IncomingSubmission) (*Submission, bool, error) {
	if s.dedup != nil {
		err := s.dedup.CheckAndInsert(ctx, incoming.SubmissionID, "intake")
		if errors.Is(err, shared.ErrDuplicateDelivery) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, err
		}
	}

	sub := Submission{
		ID:           uuid.New(),
		FormID:       incoming.FormID,
		SubmissionID: incoming.SubmissionID,
		FormTitle:    incoming.FormTitle,
		Payload:      incoming.Payload,
		Parsed:       incoming.Parsed,
		SubmittedAt:  incoming.SubmittedAt,
		ReceivedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		// The dedup row can outlive a crashed insert; treat the unique
		// hit on submission_id the same as a replay.
		if errors.Is(err, shared.ErrDuplicate) {
			return nil, true, nil
		}
		return nil, false, err
	}

	if s.notify != nil {
		if err := s.notify.EnqueueIntakeNotification(ctx, sub.ID, sub.FormTitle); err != nil {
			s.logger.Warn("enqueue intake notification", slog.String("submission_id", sub.SubmissionID), slog.Any("error", err))
		}
	}
	return &sub, false, nil
}

// ListSubmissions returns a page of submissions with pagination metadata.
func (s *Service) ListSubmissions(ctx context.Context, filter ListFilter) ([]Submission, shared.Pagination, error) {
	subs, total, err := s.repo.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return subs, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// GetSubmission fetches a single submission.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.repo.GetSubmission(ctx, id)
}

package intake

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for intake submissions.
type RepositoryPort interface {
	CreateSubmission(ctx context.Context, sub Submission) error
	ListSubmissions(ctx context.Context, filter ListFilter) ([]Submission, int, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
}

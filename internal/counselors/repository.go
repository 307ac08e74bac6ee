package counselors

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for counselor profiles.
type RepositoryPort interface {
	ListProfiles(ctx context.Context) ([]ProfileSummary, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*ProfileSummary, error)
	CreateProfile(ctx context.Context, profile Profile) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) error
}

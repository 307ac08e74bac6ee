package counselees

import (
	"context"

	"github.com/google/uuid"
)

// NewAccountRecord carries everything persisted when a counselee account
// is generated from an intake submission.
type NewAccountRecord struct {
	UserID       uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	Profile      Profile
}

// RepositoryPort defines data access methods for counselee profiles.
type RepositoryPort interface {
	ListProfiles(ctx context.Context, filter ListFilter) ([]Summary, int, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*Summary, error)
	CreateProfile(ctx context.Context, profile Profile) error
	AssignCounselor(ctx context.Context, counseleeUserID, counselorUserID uuid.UUID) error
	UpdateStatus(ctx context.Context, counseleeUserID uuid.UUID, status AssignmentStatus) error
	CreateAccountWithProfile(ctx context.Context, record NewAccountRecord) error
}

package counselors

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a counselor profile row.
type Profile struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Specialties    []string
	Bio            string
	MaxCounselees  int
	IsAcceptingNew bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileSummary joins a profile with its account and current load.
type ProfileSummary struct {
	Profile
	Email            string
	FullName         string
	ActiveCounselees int
}

// HasCapacity reports whether the counselor can take another counselee.
func (p ProfileSummary) HasCapacity() bool {
	return p.IsAcceptingNew && p.ActiveCounselees < p.MaxCounselees
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Specialties    []string
	Bio            string
	MaxCounselees  int
	IsAcceptingNew bool
}

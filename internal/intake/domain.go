package intake

import (
	"time"

	"github.com/google/uuid"
)

// Submission represents a stored intake form submission.
type Submission struct {
	ID           uuid.UUID
	FormID       string
	SubmissionID string
	FormTitle    string
	Payload      map[string]any
	Parsed       map[string]any
	SubmittedAt  *time.Time
	ReceivedAt   time.Time
}

// ListFilter narrows submission listings.
type ListFilter struct {
	// OnlyUnlinked keeps submissions not yet attached to a counselee
	// profile.
	OnlyUnlinked bool
	// CounselorID restricts the listing to a counselor's view: unlinked
	// submissions plus those linked to counselees assigned to them.
	CounselorID *uuid.UUID
	Page        int
	PerPage     int
}

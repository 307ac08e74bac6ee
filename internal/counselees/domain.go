package counselees

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus tracks where a counselee sits in the counseling
// workflow.
type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusActive    AssignmentStatus = "active"
	StatusCompleted AssignmentStatus = "completed"
	StatusArchived  AssignmentStatus = "archived"
)

// ParseAssignmentStatus validates a raw status value.
func ParseAssignmentStatus(raw string) (AssignmentStatus, error) {
	switch AssignmentStatus(raw) {
	case StatusPending, StatusActive, StatusCompleted, StatusArchived:
		return AssignmentStatus(raw), nil
	default:
		return "", fmt.Errorf("counselees: unknown assignment status %q", raw)
	}
}

// Profile represents a counselee profile row.
type Profile struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	IntakeSubmissionID  *uuid.UUID
	AssignedCounselorID *uuid.UUID
	AssignmentStatus    AssignmentStatus
	AssignedAt          *time.Time
	Notes               string
	EmergencyContact    map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Summary joins a profile with account and counselor details.
type Summary struct {
	Profile
	Email         string
	FullName      string
	CounselorName string
}

// ListFilter narrows counselee listings.
type ListFilter struct {
	CounselorID *uuid.UUID
	Status      AssignmentStatus
	Page        int
	PerPage     int
}

// GeneratedAccount reports the credentials created for a counselee from
// an intake submission. The password is shown once and never stored in
// clear.
type GeneratedAccount struct {
	UserID   uuid.UUID
	Email    string
	Password string
}

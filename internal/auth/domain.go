package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account row in the identity store.
type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

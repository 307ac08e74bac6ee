package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryDedup persists processed webhook delivery keys so providers
// that retry aggressively get acknowledged without duplicate rows.
type DeliveryDedup struct {
	pool *pgxpool.Pool
}

// NewDeliveryDedup constructs the store.
func NewDeliveryDedup(pool *pgxpool.Pool) *DeliveryDedup {
	return &DeliveryDedup{pool: pool}
}

// ErrDuplicateDelivery indicates the delivery key was seen before.
var ErrDuplicateDelivery = errors.New("delivery already processed")

// CheckAndInsert ensures key uniqueness per source.
func (s *DeliveryDedup) CheckAndInsert(ctx context.Context, key, source string) error {
	if s == nil {
		return errors.New("delivery dedup store not initialised")
	}
	if key == "" {
		return errors.New("delivery key required")
	}
	if source == "" {
		return errors.New("delivery source required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO webhook_deliveries (key, source, created_at) VALUES ($1, $2, $3)`, key, source, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDelivery
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *DeliveryDedup) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_deliveries WHERE created_at < $1`, cutoff)
	return err
}

package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `u.id, u.email, COALESCE(u.full_name, ''), u.is_active, u.role, u.created_at, u.updated_at,
	COALESCE(array_agg(ur.role ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')`

// ListAccounts returns a page of accounts with their assignment rows,
// plus the total match count.
func (r *Repository) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(` AND (u.email ILIKE $%d OR u.full_name ILIKE $%d)`, len(args), len(args))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM user_roles f WHERE f.user_id = u.id AND f.role = $%d)`, len(args))
	}

	var total int
	countQuery := `SELECT count(*) FROM users u ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := shared.LimitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query := `SELECT ` + accountColumns + `
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id ` + where + `
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $` + fmt.Sprint(len(args)-1) + ` OFFSET $` + fmt.Sprint(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// GetAccount fetches a single account with its assignment rows.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts the users row and the requested assignment rows
// in one transaction.
func (r *Repository) CreateAccount(ctx context.Context, account Account, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `INSERT INTO users (id, email, full_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $6)`,
		account.ID, account.Email, account.FullName, passwordHash, account.IsActive, now)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return err
	}
	for _, role := range account.Roles {
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)`, account.ID, string(role), now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetActive toggles account availability.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GrantRole inserts an assignment row.
func (r *Repository) GrantRole(ctx context.Context, id uuid.UUID, role authz.Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, now())`, id, string(role))
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// RevokeRole deletes an assignment row.
func (r *Repository) RevokeRole(ctx context.Context, id uuid.UUID, role authz.Role) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account   Account
		legacy    *string
		roleNames []string
	)
	if err := row.Scan(&account.ID, &account.Email, &account.FullName, &account.IsActive, &legacy, &account.CreatedAt, &account.UpdatedAt, &roleNames); err != nil {
		return Account{}, err
	}
	if legacy != nil {
		if role, err := authz.ParseRole(*legacy); err == nil {
			account.LegacyRole = &role
		}
	}
	for _, name := range roleNames {
		if role, err := authz.ParseRole(name); err == nil {
			account.Roles = append(account.Roles, role)
		}
	}
	return account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ RepositoryPort = (*Repository)(nil)

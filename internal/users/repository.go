package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zaymazone/marketplace/internal/domain"
)

const selectUsers = `
	SELECT id, name, email, password_hash, role, avatar, location, total_sales, rating,
		created_at, updated_at
	FROM users
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, avatar, location,
			total_sales, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Avatar, user.Location,
		user.TotalSales, user.Rating, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.get(ctx, selectUsers+"WHERE id = $1", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, selectUsers+"WHERE lower(email) = lower($1)", email)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, err := uuid.Parse(user.ID); err != nil {
		return domain.ErrNotFound
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, avatar = $5, location = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING total_sales, rating, updated_at
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Avatar, user.Location,
	).Scan(&user.TotalSales, &user.Rating, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	return nil
}

func (r *UserRepository) ListSellers(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, selectUsers+"WHERE role = 'seller'\nORDER BY name ASC, id ASC")
}

func (r *UserRepository) TopSellers(ctx context.Context, limit int) ([]domain.User, error) {
	return r.list(ctx, selectUsers+`WHERE role = 'seller'
		ORDER BY rating DESC, total_sales DESC, id ASC
		LIMIT $1`, limit)
}

// ApplySales adds each artisan's delta to total_sales. The event id is
// recorded in the same transaction so redelivered events are skipped.
func (r *UserRepository) ApplySales(ctx context.Context, eventID string, deltas map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sales tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID)
	if err != nil {
		return fmt.Errorf("record event %s: %w", eventID, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record event %s: %w", eventID, err)
	}
	if inserted == 0 {
		return nil
	}

	for artisanID, delta := range deltas {
		if _, err := uuid.Parse(artisanID); err != nil {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET total_sales = GREATEST(total_sales + $2, 0), updated_at = NOW()
			WHERE id = $1
		`, artisanID, delta)
		if err != nil {
			return fmt.Errorf("apply sales to %s: %w", artisanID, err)
		}
	}

	return tx.Commit()
}

func (r *UserRepository) get(ctx context.Context, query string, args ...any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Avatar, &u.Location,
		&u.TotalSales, &u.Rating, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

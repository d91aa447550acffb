package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// PostgresUsersRepository 登录账号Repository实现
type PostgresUsersRepository struct {
	db DBTX
}

func NewPostgresUsersRepository(db DBTX) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	user_id::text,
	display_name,
	username,
	password_hash,
	role,
	resident_id::text,
	created_at,
	updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		residentID sql.NullString
	)
	if err := row.Scan(
		&u.UserID,
		&u.DisplayName,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&residentID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.ResidentID = residentID.String
	return &u, nil
}

func (r *PostgresUsersRepository) getBy(ctx context.Context, where string, value string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT`+userColumns+` FROM users WHERE `+where, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.getBy(ctx, "user_id::text = $1", userID)
}

func (r *PostgresUsersRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *PostgresUsersRepository) GetUserByResident(ctx context.Context, residentID string) (*domain.User, error) {
	if residentID == "" {
		return nil, ErrNotFound
	}
	return r.getBy(ctx, "resident_id::text = $1", residentID)
}

func (r *PostgresUsersRepository) ListUsers(ctx context.Context, role string, page, size int) ([]*domain.User, int, error) {
	whereClause := ""
	args := []any{}
	if role != "" {
		whereClause = " WHERE role = $1"
		args = append(args, role)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+userColumns+` FROM users`+whereClause+` ORDER BY username ASC`+limitOffset(page, size), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	out := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *PostgresUsersRepository) CountUsersByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users by role: %w", err)
	}
	return n, nil
}

func (r *PostgresUsersRepository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, display_name, username, password_hash, role, resident_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.UserID, u.DisplayName, u.Username, u.PasswordHash, u.Role, nullString(u.ResidentID),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			display_name = $2,
			username = $3,
			role = $4,
			updated_at = now()
		WHERE user_id::text = $1
		RETURNING updated_at
	`, u.UserID, u.DisplayName, u.Username, u.Role,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update user: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresUsersRepository) UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE user_id::text = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(result)
}

func (r *PostgresUsersRepository) DeleteUser(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id::text = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result)
}

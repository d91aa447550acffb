package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// PostgresResidentsRepository 居民Repository实现
type PostgresResidentsRepository struct {
	db DBTX
}

// NewPostgresResidentsRepository 创建居民Repository
func NewPostgresResidentsRepository(db DBTX) *PostgresResidentsRepository {
	return &PostgresResidentsRepository{db: db}
}

var _ ResidentsRepository = (*PostgresResidentsRepository)(nil)

const residentColumns = `
	resident_id::text,
	nik,
	full_name,
	birth_place,
	birth_date,
	sex,
	address,
	rt,
	rw,
	hamlet,
	religion,
	marital_status,
	occupation,
	status,
	created_at,
	updated_at`

func scanResident(row rowScanner) (*domain.Resident, error) {
	var (
		res       domain.Resident
		nik       sql.NullString
		birthDate sql.NullTime
	)
	err := row.Scan(
		&res.ResidentID,
		&nik,
		&res.FullName,
		&res.BirthPlace,
		&birthDate,
		&res.Sex,
		&res.Address,
		&res.RT,
		&res.RW,
		&res.Hamlet,
		&res.Religion,
		&res.MaritalStatus,
		&res.Occupation,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.NIK = nik.String
	if birthDate.Valid {
		t := birthDate.Time
		res.BirthDate = &t
	}
	return &res, nil
}

func (r *PostgresResidentsRepository) GetResident(ctx context.Context, residentID string) (*domain.Resident, error) {
	if residentID == "" {
		return nil, fmt.Errorf("resident_id is required")
	}
	query := `SELECT` + residentColumns + ` FROM residents WHERE resident_id::text = $1`
	res, err := scanResident(r.db.QueryRowContext(ctx, query, residentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query resident: %w", err)
	}
	return res, nil
}

func (r *PostgresResidentsRepository) GetResidentByNIK(ctx context.Context, nik string) (*domain.Resident, error) {
	if nik == "" {
		return nil, ErrNotFound
	}
	query := `SELECT` + residentColumns + ` FROM residents WHERE nik = $1`
	res, err := scanResident(r.db.QueryRowContext(ctx, query, nik))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query resident by nik: %w", err)
	}
	return res, nil
}

// ListResidents 查询居民列表（按姓名排序），支持过滤和分页
func (r *PostgresResidentsRepository) ListResidents(ctx context.Context, filters ResidentFilters, page, size int) ([]*domain.Resident, int, error) {
	where := []string{}
	args := []any{}
	argN := 1

	if filters.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR nik ILIKE $%d)", argN, argN))
		args = append(args, "%"+filters.Search+"%")
		argN++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.Sex != "" {
		where = append(where, fmt.Sprintf("sex = $%d", argN))
		args = append(args, filters.Sex)
		argN++
	}
	if filters.Hamlet != "" {
		where = append(where, fmt.Sprintf("hamlet = $%d", argN))
		args = append(args, filters.Hamlet)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM residents"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count residents: %w", err)
	}

	query := `SELECT` + residentColumns + ` FROM residents` + whereClause +
		` ORDER BY full_name ASC, created_at ASC` + limitOffset(page, size)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list residents: %w", err)
	}
	defer rows.Close()

	out := []*domain.Resident{}
	for rows.Next() {
		res, err := scanResident(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan resident: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate residents: %w", err)
	}
	return out, total, nil
}

func (r *PostgresResidentsRepository) CreateResident(ctx context.Context, res *domain.Resident) error {
	if res == nil {
		return fmt.Errorf("resident is required")
	}
	if res.ResidentID == "" {
		res.ResidentID = uuid.NewString()
	}
	if res.Status == "" {
		res.Status = domain.ResidentStatusPresent
	}

	query := `
		INSERT INTO residents (
			resident_id, nik, full_name, birth_place, birth_date, sex,
			address, rt, rw, hamlet, religion, marital_status, occupation, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		res.ResidentID,
		nullString(res.NIK),
		res.FullName,
		res.BirthPlace,
		birthDateArg(res.BirthDate),
		res.Sex,
		res.Address,
		res.RT,
		res.RW,
		res.Hamlet,
		res.Religion,
		res.MaritalStatus,
		res.Occupation,
		res.Status,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resident: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresResidentsRepository) UpdateResident(ctx context.Context, res *domain.Resident) error {
	if res == nil || res.ResidentID == "" {
		return fmt.Errorf("resident_id is required")
	}
	query := `
		UPDATE residents SET
			nik = $2,
			full_name = $3,
			birth_place = $4,
			birth_date = $5,
			sex = $6,
			address = $7,
			rt = $8,
			rw = $9,
			hamlet = $10,
			religion = $11,
			marital_status = $12,
			occupation = $13,
			updated_at = now()
		WHERE resident_id::text = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		res.ResidentID,
		nullString(res.NIK),
		res.FullName,
		res.BirthPlace,
		birthDateArg(res.BirthDate),
		res.Sex,
		res.Address,
		res.RT,
		res.RW,
		res.Hamlet,
		res.Religion,
		res.MaritalStatus,
		res.Occupation,
	).Scan(&res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update resident: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresResidentsRepository) UpdateResidentStatus(ctx context.Context, residentID, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE residents SET status = $2, updated_at = now() WHERE resident_id::text = $1`,
		residentID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update resident status: %w", mapPQError(err))
	}
	return requireAffected(result)
}

func (r *PostgresResidentsRepository) DeleteResident(ctx context.Context, residentID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM residents WHERE resident_id::text = $1`, residentID)
	if err != nil {
		return fmt.Errorf("failed to delete resident: %w", mapPQError(err))
	}
	return requireAffected(result)
}

func birthDateArg(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

// requireAffected 0 行受影响视为 ErrNotFound
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

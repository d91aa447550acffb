package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// PostgresLettersRepository 证明信Repository实现
type PostgresLettersRepository struct {
	db DBTX
}

var _ LettersRepository = (*PostgresLettersRepository)(nil)

const letterColumns = `
	letter_id::text,
	letter_type,
	resident_id::text,
	serial_number,
	purpose,
	notes,
	status,
	created_at,
	updated_at`

func scanLetter(row rowScanner) (*domain.Letter, error) {
	var l domain.Letter
	if err := row.Scan(
		&l.LetterID,
		&l.LetterType,
		&l.ResidentID,
		&l.SerialNumber,
		&l.Purpose,
		&l.Notes,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PostgresLettersRepository) GetLetter(ctx context.Context, letterID string) (*domain.Letter, error) {
	l, err := scanLetter(r.db.QueryRowContext(ctx,
		`SELECT`+letterColumns+` FROM letters WHERE letter_id::text = $1`, letterID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query letter: %w", err)
	}
	return l, nil
}

// ListLetters 按创建时间倒序
func (r *PostgresLettersRepository) ListLetters(ctx context.Context, filters LetterFilters, page, size int) ([]*domain.Letter, int, error) {
	where := []string{}
	args := []any{}
	argN := 1
	if filters.ResidentID != "" {
		where = append(where, fmt.Sprintf("resident_id::text = $%d", argN))
		args = append(args, filters.ResidentID)
		argN++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filters.Status)
		argN++
	}
	if filters.LetterType != "" {
		where = append(where, fmt.Sprintf("letter_type = $%d", argN))
		args = append(args, filters.LetterType)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM letters"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count letters: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+letterColumns+` FROM letters`+whereClause+` ORDER BY created_at DESC`+limitOffset(page, size), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list letters: %w", err)
	}
	defer rows.Close()

	out := []*domain.Letter{}
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan letter: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *PostgresLettersRepository) CreateLetter(ctx context.Context, l *domain.Letter) error {
	if l.LetterID == "" {
		l.LetterID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO letters (letter_id, letter_type, resident_id, serial_number, purpose, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, l.LetterID, l.LetterType, l.ResidentID, l.SerialNumber, l.Purpose, l.Notes, l.Status,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create letter: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresLettersRepository) UpdateLetter(ctx context.Context, l *domain.Letter) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE letters SET
			letter_type = $2,
			serial_number = $3,
			purpose = $4,
			notes = $5,
			status = $6,
			updated_at = now()
		WHERE letter_id::text = $1
		RETURNING updated_at
	`, l.LetterID, l.LetterType, l.SerialNumber, l.Purpose, l.Notes, l.Status,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update letter: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresLettersRepository) DeleteLetter(ctx context.Context, letterID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM letters WHERE letter_id::text = $1`, letterID)
	if err != nil {
		return fmt.Errorf("failed to delete letter: %w", err)
	}
	return requireAffected(result)
}

// PostgresAnnouncementsRepository 公告Repository实现
type PostgresAnnouncementsRepository struct {
	db DBTX
}

var _ AnnouncementsRepository = (*PostgresAnnouncementsRepository)(nil)

const announcementColumns = `
	announcement_id::text,
	title,
	body,
	author,
	created_at,
	updated_at`

func scanAnnouncement(row rowScanner) (*domain.Announcement, error) {
	var a domain.Announcement
	if err := row.Scan(&a.AnnouncementID, &a.Title, &a.Body, &a.Author, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAnnouncementsRepository) GetAnnouncement(ctx context.Context, announcementID string) (*domain.Announcement, error) {
	a, err := scanAnnouncement(r.db.QueryRowContext(ctx,
		`SELECT`+announcementColumns+` FROM announcements WHERE announcement_id::text = $1`, announcementID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query announcement: %w", err)
	}
	return a, nil
}

func (r *PostgresAnnouncementsRepository) ListAnnouncements(ctx context.Context, page, size int) ([]*domain.Announcement, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM announcements").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+announcementColumns+` FROM announcements ORDER BY created_at DESC`+limitOffset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	out := []*domain.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *PostgresAnnouncementsRepository) CreateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	if a.AnnouncementID == "" {
		a.AnnouncementID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO announcements (announcement_id, title, body, author)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, a.AnnouncementID, a.Title, a.Body, a.Author).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *PostgresAnnouncementsRepository) UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE announcements SET title = $2, body = $3, author = $4, updated_at = now()
		WHERE announcement_id::text = $1
		RETURNING updated_at
	`, a.AnnouncementID, a.Title, a.Body, a.Author).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return nil
}

func (r *PostgresAnnouncementsRepository) DeleteAnnouncement(ctx context.Context, announcementID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE announcement_id::text = $1`, announcementID)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	return requireAffected(result)
}

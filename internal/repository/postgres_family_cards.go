package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// PostgresFamilyCardsRepository 家庭卡Repository实现
type PostgresFamilyCardsRepository struct {
	db DBTX
}

func NewPostgresFamilyCardsRepository(db DBTX) *PostgresFamilyCardsRepository {
	return &PostgresFamilyCardsRepository{db: db}
}

var _ FamilyCardsRepository = (*PostgresFamilyCardsRepository)(nil)

const familyCardColumns = `
	family_card_id::text,
	card_number,
	head_name,
	address,
	rt,
	rw,
	hamlet,
	created_at,
	updated_at`

func scanFamilyCard(row rowScanner) (*domain.FamilyCard, error) {
	var c domain.FamilyCard
	if err := row.Scan(
		&c.FamilyCardID,
		&c.CardNumber,
		&c.HeadName,
		&c.Address,
		&c.RT,
		&c.RW,
		&c.Hamlet,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresFamilyCardsRepository) GetFamilyCard(ctx context.Context, familyCardID string) (*domain.FamilyCard, error) {
	query := `SELECT` + familyCardColumns + ` FROM family_cards WHERE family_card_id::text = $1`
	c, err := scanFamilyCard(r.db.QueryRowContext(ctx, query, familyCardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query family card: %w", err)
	}
	return c, nil
}

func (r *PostgresFamilyCardsRepository) GetFamilyCardByNumber(ctx context.Context, cardNumber string) (*domain.FamilyCard, error) {
	query := `SELECT` + familyCardColumns + ` FROM family_cards WHERE card_number = $1`
	c, err := scanFamilyCard(r.db.QueryRowContext(ctx, query, cardNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query family card by number: %w", err)
	}
	return c, nil
}

// ListFamilyCards 按卡号排序；search 匹配卡号或户主姓名
func (r *PostgresFamilyCardsRepository) ListFamilyCards(ctx context.Context, search string, page, size int) ([]*domain.FamilyCard, int, error) {
	whereClause := ""
	args := []any{}
	if search != "" {
		whereClause = " WHERE (card_number ILIKE $1 OR head_name ILIKE $1)"
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM family_cards"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count family cards: %w", err)
	}

	query := `SELECT` + familyCardColumns + ` FROM family_cards` + whereClause +
		` ORDER BY card_number ASC` + limitOffset(page, size)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list family cards: %w", err)
	}
	defer rows.Close()

	out := []*domain.FamilyCard{}
	for rows.Next() {
		c, err := scanFamilyCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan family card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate family cards: %w", err)
	}
	return out, total, nil
}

func (r *PostgresFamilyCardsRepository) CreateFamilyCard(ctx context.Context, c *domain.FamilyCard) error {
	if c.FamilyCardID == "" {
		c.FamilyCardID = uuid.NewString()
	}
	query := `
		INSERT INTO family_cards (family_card_id, card_number, head_name, address, rt, rw, hamlet)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		c.FamilyCardID, c.CardNumber, c.HeadName, c.Address, c.RT, c.RW, c.Hamlet,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create family card: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresFamilyCardsRepository) UpdateFamilyCard(ctx context.Context, c *domain.FamilyCard) error {
	query := `
		UPDATE family_cards SET
			card_number = $2,
			head_name = $3,
			address = $4,
			rt = $5,
			rw = $6,
			hamlet = $7,
			updated_at = now()
		WHERE family_card_id::text = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		c.FamilyCardID, c.CardNumber, c.HeadName, c.Address, c.RT, c.RW, c.Hamlet,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update family card: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresFamilyCardsRepository) DeleteFamilyCard(ctx context.Context, familyCardID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM family_cards WHERE family_card_id::text = $1`, familyCardID)
	if err != nil {
		return fmt.Errorf("failed to delete family card: %w", mapPQError(err))
	}
	return requireAffected(result)
}

// PostgresMembershipsRepository 家庭成员Repository实现
type PostgresMembershipsRepository struct {
	db DBTX
}

func NewPostgresMembershipsRepository(db DBTX) *PostgresMembershipsRepository {
	return &PostgresMembershipsRepository{db: db}
}

var _ MembershipsRepository = (*PostgresMembershipsRepository)(nil)

const membershipColumns = `
	membership_id::text,
	resident_id::text,
	family_card_id::text,
	relationship,
	created_at,
	updated_at`

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	if err := row.Scan(
		&m.MembershipID,
		&m.ResidentID,
		&m.FamilyCardID,
		&m.Relationship,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMembershipsRepository) GetMembership(ctx context.Context, membershipID string) (*domain.Membership, error) {
	query := `SELECT` + membershipColumns + ` FROM memberships WHERE membership_id::text = $1`
	m, err := scanMembership(r.db.QueryRowContext(ctx, query, membershipID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}
	return m, nil
}

func (r *PostgresMembershipsRepository) GetMembershipByResident(ctx context.Context, residentID string) (*domain.Membership, error) {
	query := `SELECT` + membershipColumns + ` FROM memberships WHERE resident_id::text = $1`
	m, err := scanMembership(r.db.QueryRowContext(ctx, query, residentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query membership by resident: %w", err)
	}
	return m, nil
}

func (r *PostgresMembershipsRepository) ListMemberships(ctx context.Context, familyCardID string) ([]*domain.Membership, error) {
	query := `SELECT` + membershipColumns + ` FROM memberships
		WHERE family_card_id::text = $1
		ORDER BY created_at ASC, membership_id ASC`
	rows, err := r.db.QueryContext(ctx, query, familyCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	out := []*domain.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMemberDetails 成员 JOIN 居民，按插入顺序
func (r *PostgresMembershipsRepository) ListMemberDetails(ctx context.Context, familyCardID string) ([]*domain.MemberDetail, error) {
	query := `
		SELECT
			m.membership_id::text,
			m.resident_id::text,
			m.family_card_id::text,
			m.relationship,
			m.created_at,
			m.updated_at,
			r.resident_id::text,
			r.nik,
			r.full_name,
			r.birth_place,
			r.birth_date,
			r.sex,
			r.address,
			r.rt,
			r.rw,
			r.hamlet,
			r.religion,
			r.marital_status,
			r.occupation,
			r.status,
			r.created_at,
			r.updated_at
		FROM memberships m
		JOIN residents r ON r.resident_id = m.resident_id
		WHERE m.family_card_id::text = $1
		ORDER BY m.created_at ASC, m.membership_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, familyCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member details: %w", err)
	}
	defer rows.Close()

	out := []*domain.MemberDetail{}
	for rows.Next() {
		var (
			d         domain.MemberDetail
			nik       sql.NullString
			birthDate sql.NullTime
		)
		if err := rows.Scan(
			&d.Membership.MembershipID,
			&d.Membership.ResidentID,
			&d.Membership.FamilyCardID,
			&d.Membership.Relationship,
			&d.Membership.CreatedAt,
			&d.Membership.UpdatedAt,
			&d.Resident.ResidentID,
			&nik,
			&d.Resident.FullName,
			&d.Resident.BirthPlace,
			&birthDate,
			&d.Resident.Sex,
			&d.Resident.Address,
			&d.Resident.RT,
			&d.Resident.RW,
			&d.Resident.Hamlet,
			&d.Resident.Religion,
			&d.Resident.MaritalStatus,
			&d.Resident.Occupation,
			&d.Resident.Status,
			&d.Resident.CreatedAt,
			&d.Resident.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member detail: %w", err)
		}
		d.Resident.NIK = nik.String
		if birthDate.Valid {
			t := birthDate.Time
			d.Resident.BirthDate = &t
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *PostgresMembershipsRepository) CountMemberships(ctx context.Context, familyCardID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE family_card_id::text = $1`, familyCardID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return n, nil
}

// UpsertMembership ON CONFLICT (resident_id) 时移动已有行；created_at 保留
func (r *PostgresMembershipsRepository) UpsertMembership(ctx context.Context, m *domain.Membership) (bool, error) {
	if m.MembershipID == "" {
		m.MembershipID = uuid.NewString()
	}
	query := `
		INSERT INTO memberships (membership_id, resident_id, family_card_id, relationship)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resident_id) DO UPDATE SET
			family_card_id = EXCLUDED.family_card_id,
			relationship = EXCLUDED.relationship,
			updated_at = now()
		RETURNING membership_id::text, created_at, updated_at, (xmax <> 0)
	`
	var existed bool
	err := r.db.QueryRowContext(ctx, query,
		m.MembershipID, m.ResidentID, m.FamilyCardID, m.Relationship,
	).Scan(&m.MembershipID, &m.CreatedAt, &m.UpdatedAt, &existed)
	if err != nil {
		return false, fmt.Errorf("failed to upsert membership: %w", mapPQError(err))
	}
	return existed, nil
}

func (r *PostgresMembershipsRepository) DeleteMembership(ctx context.Context, membershipID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE membership_id::text = $1`, membershipID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", mapPQError(err))
	}
	return requireAffected(result)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// ---- 出生登记 ----

type PostgresBirthEventsRepository struct {
	db DBTX
}

var _ BirthEventsRepository = (*PostgresBirthEventsRepository)(nil)

const birthColumns = `
	birth_event_id::text,
	resident_id::text,
	family_card_id::text,
	birth_date,
	birth_place,
	father_name,
	mother_name,
	created_at,
	updated_at`

func scanBirth(row rowScanner) (*domain.BirthEvent, error) {
	var e domain.BirthEvent
	if err := row.Scan(
		&e.BirthEventID,
		&e.ResidentID,
		&e.FamilyCardID,
		&e.BirthDate,
		&e.BirthPlace,
		&e.FatherName,
		&e.MotherName,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresBirthEventsRepository) GetBirth(ctx context.Context, birthEventID string) (*domain.BirthEvent, error) {
	e, err := scanBirth(r.db.QueryRowContext(ctx,
		`SELECT`+birthColumns+` FROM birth_events WHERE birth_event_id::text = $1`, birthEventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query birth event: %w", err)
	}
	return e, nil
}

// ListBirths familyCardID 为空时返回全部；按出生日期倒序
func (r *PostgresBirthEventsRepository) ListBirths(ctx context.Context, familyCardID string, page, size int) ([]*domain.BirthEvent, int, error) {
	whereClause := ""
	args := []any{}
	if familyCardID != "" {
		whereClause = " WHERE family_card_id::text = $1"
		args = append(args, familyCardID)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM birth_events"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count birth events: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+birthColumns+` FROM birth_events`+whereClause+
			` ORDER BY birth_date DESC, created_at DESC`+limitOffset(page, size), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list birth events: %w", err)
	}
	defer rows.Close()

	out := []*domain.BirthEvent{}
	for rows.Next() {
		e, err := scanBirth(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan birth event: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PostgresBirthEventsRepository) CreateBirth(ctx context.Context, e *domain.BirthEvent) error {
	if e.BirthEventID == "" {
		e.BirthEventID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO birth_events (birth_event_id, resident_id, family_card_id, birth_date, birth_place, father_name, mother_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, e.BirthEventID, e.ResidentID, e.FamilyCardID, e.BirthDate, e.BirthPlace, e.FatherName, e.MotherName,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create birth event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresBirthEventsRepository) UpdateBirth(ctx context.Context, e *domain.BirthEvent) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE birth_events SET
			family_card_id = $2,
			birth_date = $3,
			birth_place = $4,
			father_name = $5,
			mother_name = $6,
			updated_at = now()
		WHERE birth_event_id::text = $1
		RETURNING updated_at
	`, e.BirthEventID, e.FamilyCardID, e.BirthDate, e.BirthPlace, e.FatherName, e.MotherName,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update birth event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresBirthEventsRepository) DeleteBirth(ctx context.Context, birthEventID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM birth_events WHERE birth_event_id::text = $1`, birthEventID)
	if err != nil {
		return fmt.Errorf("failed to delete birth event: %w", mapPQError(err))
	}
	return requireAffected(result)
}

// ---- 死亡登记 ----

type PostgresDeathEventsRepository struct {
	db DBTX
}

var _ DeathEventsRepository = (*PostgresDeathEventsRepository)(nil)

const deathColumns = `
	death_event_id::text,
	resident_id::text,
	date_of_death,
	cause,
	place,
	created_at,
	updated_at`

func scanDeath(row rowScanner) (*domain.DeathEvent, error) {
	var e domain.DeathEvent
	if err := row.Scan(
		&e.DeathEventID,
		&e.ResidentID,
		&e.DateOfDeath,
		&e.Cause,
		&e.Place,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresDeathEventsRepository) getBy(ctx context.Context, column, value string) (*domain.DeathEvent, error) {
	e, err := scanDeath(r.db.QueryRowContext(ctx,
		`SELECT`+deathColumns+` FROM death_events WHERE `+column+`::text = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query death event: %w", err)
	}
	return e, nil
}

func (r *PostgresDeathEventsRepository) GetDeath(ctx context.Context, deathEventID string) (*domain.DeathEvent, error) {
	return r.getBy(ctx, "death_event_id", deathEventID)
}

func (r *PostgresDeathEventsRepository) GetDeathByResident(ctx context.Context, residentID string) (*domain.DeathEvent, error) {
	return r.getBy(ctx, "resident_id", residentID)
}

func (r *PostgresDeathEventsRepository) ListDeaths(ctx context.Context, page, size int) ([]*domain.DeathEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM death_events").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count death events: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+deathColumns+` FROM death_events ORDER BY date_of_death DESC, created_at DESC`+limitOffset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list death events: %w", err)
	}
	defer rows.Close()

	out := []*domain.DeathEvent{}
	for rows.Next() {
		e, err := scanDeath(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan death event: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PostgresDeathEventsRepository) CreateDeath(ctx context.Context, e *domain.DeathEvent) error {
	if e.DeathEventID == "" {
		e.DeathEventID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO death_events (death_event_id, resident_id, date_of_death, cause, place)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, e.DeathEventID, e.ResidentID, e.DateOfDeath, e.Cause, e.Place,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create death event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresDeathEventsRepository) UpdateDeath(ctx context.Context, e *domain.DeathEvent) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE death_events SET
			resident_id = $2,
			date_of_death = $3,
			cause = $4,
			place = $5,
			updated_at = now()
		WHERE death_event_id::text = $1
		RETURNING updated_at
	`, e.DeathEventID, e.ResidentID, e.DateOfDeath, e.Cause, e.Place,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update death event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresDeathEventsRepository) DeleteDeath(ctx context.Context, deathEventID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM death_events WHERE death_event_id::text = $1`, deathEventID)
	if err != nil {
		return fmt.Errorf("failed to delete death event: %w", mapPQError(err))
	}
	return requireAffected(result)
}

// ---- 迁入登记 ----

type PostgresArrivalEventsRepository struct {
	db DBTX
}

var _ ArrivalEventsRepository = (*PostgresArrivalEventsRepository)(nil)

const arrivalColumns = `
	arrival_event_id::text,
	nik,
	full_name,
	sex,
	arrival_date,
	origin_address,
	reporter_resident_id::text,
	resident_id::text,
	created_at,
	updated_at`

func scanArrival(row rowScanner) (*domain.ArrivalEvent, error) {
	var (
		e        domain.ArrivalEvent
		reporter sql.NullString
		resident sql.NullString
	)
	if err := row.Scan(
		&e.ArrivalEventID,
		&e.NIK,
		&e.FullName,
		&e.Sex,
		&e.ArrivalDate,
		&e.OriginAddress,
		&reporter,
		&resident,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.ReporterResidentID = reporter.String
	e.ResidentID = resident.String
	return &e, nil
}

func (r *PostgresArrivalEventsRepository) GetArrival(ctx context.Context, arrivalEventID string) (*domain.ArrivalEvent, error) {
	e, err := scanArrival(r.db.QueryRowContext(ctx,
		`SELECT`+arrivalColumns+` FROM arrival_events WHERE arrival_event_id::text = $1`, arrivalEventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query arrival event: %w", err)
	}
	return e, nil
}

func (r *PostgresArrivalEventsRepository) ListArrivals(ctx context.Context, page, size int) ([]*domain.ArrivalEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM arrival_events").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count arrival events: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+arrivalColumns+` FROM arrival_events ORDER BY arrival_date DESC, created_at DESC`+limitOffset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list arrival events: %w", err)
	}
	defer rows.Close()

	out := []*domain.ArrivalEvent{}
	for rows.Next() {
		e, err := scanArrival(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan arrival event: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PostgresArrivalEventsRepository) CreateArrival(ctx context.Context, e *domain.ArrivalEvent) error {
	if e.ArrivalEventID == "" {
		e.ArrivalEventID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO arrival_events (
			arrival_event_id, nik, full_name, sex, arrival_date, origin_address, reporter_resident_id, resident_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, e.ArrivalEventID, e.NIK, e.FullName, e.Sex, e.ArrivalDate, e.OriginAddress,
		nullString(e.ReporterResidentID), nullString(e.ResidentID),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create arrival event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresArrivalEventsRepository) UpdateArrival(ctx context.Context, e *domain.ArrivalEvent) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE arrival_events SET
			nik = $2,
			full_name = $3,
			sex = $4,
			arrival_date = $5,
			origin_address = $6,
			reporter_resident_id = $7,
			resident_id = $8,
			updated_at = now()
		WHERE arrival_event_id::text = $1
		RETURNING updated_at
	`, e.ArrivalEventID, e.NIK, e.FullName, e.Sex, e.ArrivalDate, e.OriginAddress,
		nullString(e.ReporterResidentID), nullString(e.ResidentID),
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update arrival event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresArrivalEventsRepository) DeleteArrival(ctx context.Context, arrivalEventID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM arrival_events WHERE arrival_event_id::text = $1`, arrivalEventID)
	if err != nil {
		return fmt.Errorf("failed to delete arrival event: %w", mapPQError(err))
	}
	return requireAffected(result)
}

// ---- 迁出登记 ----

type PostgresDepartureEventsRepository struct {
	db DBTX
}

var _ DepartureEventsRepository = (*PostgresDepartureEventsRepository)(nil)

const departureColumns = `
	departure_event_id::text,
	resident_id::text,
	departure_date,
	reason,
	destination,
	created_at,
	updated_at`

func scanDeparture(row rowScanner) (*domain.DepartureEvent, error) {
	var e domain.DepartureEvent
	if err := row.Scan(
		&e.DepartureEventID,
		&e.ResidentID,
		&e.DepartureDate,
		&e.Reason,
		&e.Destination,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresDepartureEventsRepository) getBy(ctx context.Context, column, value string) (*domain.DepartureEvent, error) {
	e, err := scanDeparture(r.db.QueryRowContext(ctx,
		`SELECT`+departureColumns+` FROM departure_events WHERE `+column+`::text = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query departure event: %w", err)
	}
	return e, nil
}

func (r *PostgresDepartureEventsRepository) GetDeparture(ctx context.Context, departureEventID string) (*domain.DepartureEvent, error) {
	return r.getBy(ctx, "departure_event_id", departureEventID)
}

func (r *PostgresDepartureEventsRepository) GetDepartureByResident(ctx context.Context, residentID string) (*domain.DepartureEvent, error) {
	return r.getBy(ctx, "resident_id", residentID)
}

func (r *PostgresDepartureEventsRepository) ListDepartures(ctx context.Context, page, size int) ([]*domain.DepartureEvent, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM departure_events").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count departure events: %w", err)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+departureColumns+` FROM departure_events ORDER BY departure_date DESC, created_at DESC`+limitOffset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list departure events: %w", err)
	}
	defer rows.Close()

	out := []*domain.DepartureEvent{}
	for rows.Next() {
		e, err := scanDeparture(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan departure event: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PostgresDepartureEventsRepository) CreateDeparture(ctx context.Context, e *domain.DepartureEvent) error {
	if e.DepartureEventID == "" {
		e.DepartureEventID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO departure_events (departure_event_id, resident_id, departure_date, reason, destination)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, e.DepartureEventID, e.ResidentID, e.DepartureDate, e.Reason, e.Destination,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create departure event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresDepartureEventsRepository) UpdateDeparture(ctx context.Context, e *domain.DepartureEvent) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE departure_events SET
			resident_id = $2,
			departure_date = $3,
			reason = $4,
			destination = $5,
			updated_at = now()
		WHERE departure_event_id::text = $1
		RETURNING updated_at
	`, e.DepartureEventID, e.ResidentID, e.DepartureDate, e.Reason, e.Destination,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update departure event: %w", mapPQError(err))
	}
	return nil
}

func (r *PostgresDepartureEventsRepository) DeleteDeparture(ctx context.Context, departureEventID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM departure_events WHERE departure_event_id::text = $1`, departureEventID)
	if err != nil {
		return fmt.Errorf("failed to delete departure event: %w", mapPQError(err))
	}
	return requireAffected(result)
}

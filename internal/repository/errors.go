package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// 约束名称：Postgres schema 与内存实现保持一致，Service 层据此映射领域错误
const (
	ConstraintResidentNIK         = "residents_nik_key"
	ConstraintFamilyCardNumber    = "family_cards_card_number_key"
	ConstraintMembershipResident  = "memberships_resident_id_key"
	ConstraintDeathResident       = "death_events_resident_id_key"
	ConstraintDepartureResident   = "departure_events_resident_id_key"
	ConstraintUsername            = "users_username_key"
	ConstraintUserResident        = "users_resident_id_key"
	ConstraintMembershipResidentF = "memberships_resident_id_fkey"
	ConstraintMembershipCardF     = "memberships_family_card_id_fkey"
	ConstraintBirthResidentF      = "birth_events_resident_id_fkey"
	ConstraintBirthCardF          = "birth_events_family_card_id_fkey"
	ConstraintDeathResidentF      = "death_events_resident_id_fkey"
	ConstraintDepartureResidentF  = "departure_events_resident_id_fkey"
	ConstraintArrivalReporterF    = "arrival_events_reporter_resident_id_fkey"
	ConstraintArrivalResidentF    = "arrival_events_resident_id_fkey"
	ConstraintLetterResidentF     = "letters_resident_id_fkey"
)

// UniqueViolationError 唯一约束冲突（SQLSTATE 23505）
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Constraint)
}

func (e *UniqueViolationError) Is(target error) bool { return target == ErrUniqueViolation }

func (e *UniqueViolationError) Unwrap() error { return e.Err }

// ForeignKeyViolationError 外键约束冲突（SQLSTATE 23503）
type ForeignKeyViolationError struct {
	Constraint string
	Err        error
}

func (e *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("foreign key violation on %s", e.Constraint)
}

func (e *ForeignKeyViolationError) Is(target error) bool { return target == ErrForeignKeyViolation }

func (e *ForeignKeyViolationError) Unwrap() error { return e.Err }

// ConstraintOf 返回约束冲突的约束名；非约束错误返回 ""
func ConstraintOf(err error) string {
	var uv *UniqueViolationError
	if errors.As(err, &uv) {
		return uv.Constraint
	}
	var fk *ForeignKeyViolationError
	if errors.As(err, &fk) {
		return fk.Constraint
	}
	return ""
}

// mapPQError 把 pq.Error 转换为仓库层错误
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &UniqueViolationError{Constraint: pqErr.Constraint, Err: err}
		case "23503":
			return &ForeignKeyViolationError{Constraint: pqErr.Constraint, Err: err}
		}
	}
	return err
}

package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"sipenduk/internal/repository"
)

// 错误分类（按效果，而非类型）
var (
	ErrNotFound = errors.New("not found")

	ErrUniqueConflict      = errors.New("uniqueness conflict")
	ErrDuplicateNationalID = fmt.Errorf("%w: national id already registered", ErrUniqueConflict)
	ErrDuplicateCardNumber = fmt.Errorf("%w: family card number already registered", ErrUniqueConflict)
	ErrDuplicateUsername   = fmt.Errorf("%w: username already taken", ErrUniqueConflict)
	ErrResidentHasAccount  = fmt.Errorf("%w: resident already has an account", ErrUniqueConflict)

	ErrReferentialConflict   = errors.New("referential conflict")
	ErrResidentHasMembership = fmt.Errorf("%w: resident still has a family membership", ErrReferentialConflict)
	ErrResidentReferenced    = fmt.Errorf("%w: resident is still referenced by other records", ErrReferentialConflict)
	ErrFamilyCardHasMembers  = fmt.Errorf("%w: family card still has members", ErrReferentialConflict)
	ErrFamilyCardReferenced  = fmt.Errorf("%w: family card is still referenced by birth records", ErrReferentialConflict)

	ErrStateConflict           = errors.New("state conflict")
	ErrAlreadyDeceased         = fmt.Errorf("%w: resident is already deceased", ErrStateConflict)
	ErrAlreadyRelocated        = fmt.Errorf("%w: resident is already relocated", ErrStateConflict)
	ErrResidentDeceased        = fmt.Errorf("%w: resident is deceased", ErrStateConflict)
	ErrResidentRelocated       = fmt.Errorf("%w: resident is relocated", ErrStateConflict)
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrStateConflict)
	ErrLastAdmin               = fmt.Errorf("%w: cannot remove the last admin account", ErrStateConflict)

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError 字段级校验失败；Fields: json 字段名 -> 提示信息
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Kind 错误类别，HTTP 层据此选择状态码
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindReferential Kind = "referential"
	KindState       Kind = "state"
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth"
	KindForbidden   Kind = "forbidden"
	KindInternal    Kind = "internal"
)

func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrUniqueConflict):
		return KindConflict
	case errors.Is(err, ErrReferentialConflict):
		return KindReferential
	case errors.Is(err, ErrStateConflict):
		return KindState
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}

// mapStoreError 把仓库层的约束冲突翻译为领域错误
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch repository.ConstraintOf(err) {
	case repository.ConstraintResidentNIK:
		return ErrDuplicateNationalID
	case repository.ConstraintFamilyCardNumber:
		return ErrDuplicateCardNumber
	case repository.ConstraintUsername:
		return ErrDuplicateUsername
	case repository.ConstraintUserResident:
		return ErrResidentHasAccount
	case repository.ConstraintDeathResident:
		return ErrAlreadyDeceased
	case repository.ConstraintDepartureResident:
		return ErrAlreadyRelocated
	case repository.ConstraintMembershipResidentF:
		return ErrResidentHasMembership
	case repository.ConstraintMembershipCardF:
		return ErrFamilyCardHasMembers
	case repository.ConstraintBirthCardF:
		return ErrFamilyCardReferenced
	case repository.ConstraintBirthResidentF,
		repository.ConstraintDeathResidentF,
		repository.ConstraintDepartureResidentF,
		repository.ConstraintLetterResidentF:
		return ErrResidentReferenced
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

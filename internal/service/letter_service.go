package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// LetterService 证明信申请与审核
type LetterService interface {
	CreateLetter(ctx context.Context, req CreateLetterRequest) (*LetterItem, error)
	// RequestOwnLetter guest 为自己申请（按账号所属居民）
	RequestOwnLetter(ctx context.Context, session *Session, req OwnLetterRequest) (*LetterItem, error)
	GetLetter(ctx context.Context, letterID string) (*LetterItem, error)
	ListLetters(ctx context.Context, req ListLettersRequest) (*ListLettersResponse, error)
	ListOwnLetters(ctx context.Context, session *Session, page EventPage) (*ListLettersResponse, error)
	UpdateLetterStatus(ctx context.Context, letterID string, req UpdateLetterStatusRequest) (*LetterItem, error)
	DeleteLetter(ctx context.Context, letterID string) error
}

type letterService struct {
	store     repository.Store
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewLetterService(store repository.Store, publisher EventPublisher, logger *zap.Logger) LetterService {
	return &letterService{
		store:     store,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
		logger:    logger,
	}
}

type CreateLetterRequest struct {
	ResidentID string `json:"resident_id" validate:"required"`
	LetterType string `json:"letter_type" validate:"required,max=50"`
	Purpose    string `json:"purpose" validate:"required,max=255"`
	Notes      string `json:"notes" validate:"max=500"`
}

type OwnLetterRequest struct {
	LetterType string `json:"letter_type" validate:"required,max=50"`
	Purpose    string `json:"purpose" validate:"required,max=255"`
	Notes      string `json:"notes" validate:"max=500"`
}

type UpdateLetterStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=done rejected"`
	Notes  string `json:"notes" validate:"max=500"`
}

type ListLettersRequest struct {
	ResidentID string
	Status     string
	LetterType string
	Page       int
	Size       int
}

type LetterItem struct {
	LetterID     string    `json:"letter_id"`
	LetterType   string    `json:"letter_type"`
	ResidentID   string    `json:"resident_id"`
	SerialNumber string    `json:"serial_number"`
	Purpose      string    `json:"purpose"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toLetterItem(l *domain.Letter) *LetterItem {
	return &LetterItem{
		LetterID:     l.LetterID,
		LetterType:   l.LetterType,
		ResidentID:   l.ResidentID,
		SerialNumber: l.SerialNumber,
		Purpose:      l.Purpose,
		Notes:        l.Notes,
		Status:       l.Status,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

type ListLettersResponse struct {
	Items []*LetterItem `json:"items"`
	Total int           `json:"total"`
}

var romanMonths = [...]string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII"}

// letterSerial "<id 前 8 位大写>/<TYPE>/<罗马数字月份>/<年>"
// 不保证唯一：不同 id 的前 8 位可能相同
func letterSerial(letterID, letterType string, at time.Time) string {
	prefix := strings.ToUpper(strings.ReplaceAll(letterID, "-", ""))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	typ := strings.ToUpper(strings.Join(strings.Fields(letterType), "-"))
	return fmt.Sprintf("%s/%s/%s/%d", prefix, typ, romanMonths[at.Month()-1], at.Year())
}

func (s *letterService) CreateLetter(ctx context.Context, req CreateLetterRequest) (item *LetterItem, err error) {
	defer func() { observe("letter.create", err) }()

	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.LetterType = strings.TrimSpace(req.LetterType)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var letter *domain.Letter
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := requireResident(ctx, r, "resident_id", req.ResidentID); err != nil {
			return err
		}
		letter, err = s.insertLetter(ctx, r, req.ResidentID, req.LetterType, req.Purpose, req.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Letter requested",
		zap.String("letter_id", letter.LetterID),
		zap.String("resident_id", letter.ResidentID),
		zap.String("serial_number", letter.SerialNumber),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventLetterRequested, EntityID: letter.LetterID, ResidentID: letter.ResidentID})
	return toLetterItem(letter), nil
}

func (s *letterService) insertLetter(ctx context.Context, r repository.Repos, residentID, letterType, purpose, notes string) (*domain.Letter, error) {
	id := uuid.NewString()
	letter := &domain.Letter{
		LetterID:     id,
		LetterType:   letterType,
		ResidentID:   residentID,
		SerialNumber: letterSerial(id, letterType, s.now()),
		Purpose:      purpose,
		Notes:        notes,
		Status:       domain.LetterStatusProcessing,
	}
	if err := r.Letters.CreateLetter(ctx, letter); err != nil {
		return nil, fmt.Errorf("failed to create letter: %w", mapStoreError(err))
	}
	return letter, nil
}

// sessionResident 按账号的 resident_id 解析居民；旧数据账号没有 resident_id 时按 username=NIK
func (s *letterService) sessionResident(ctx context.Context, r repository.Repos, session *Session) (*domain.Resident, error) {
	if session == nil {
		return nil, ErrUnauthorized
	}
	user, err := r.Users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to resolve session account: %w", err)
	}
	var res *domain.Resident
	if user.ResidentID != "" {
		res, err = r.Residents.GetResident(ctx, user.ResidentID)
	} else {
		res, err = r.Residents.GetResidentByNIK(ctx, user.Username)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to resolve session resident: %w", err)
	}
	return res, nil
}

func (s *letterService) RequestOwnLetter(ctx context.Context, session *Session, req OwnLetterRequest) (item *LetterItem, err error) {
	defer func() { observe("letter.request_own", err) }()

	req.LetterType = strings.TrimSpace(req.LetterType)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var letter *domain.Letter
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		res, err := s.sessionResident(ctx, r, session)
		if err != nil {
			return err
		}
		letter, err = s.insertLetter(ctx, r, res.ResidentID, req.LetterType, req.Purpose, req.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventLetterRequested, EntityID: letter.LetterID, ResidentID: letter.ResidentID})
	return toLetterItem(letter), nil
}

func (s *letterService) GetLetter(ctx context.Context, letterID string) (*LetterItem, error) {
	l, err := s.store.Repos().Letters.GetLetter(ctx, letterID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toLetterItem(l), nil
}

func (s *letterService) ListLetters(ctx context.Context, req ListLettersRequest) (*ListLettersResponse, error) {
	page, size := normalizePaging(req.Page, req.Size)
	filters := repository.LetterFilters{
		ResidentID: strings.TrimSpace(req.ResidentID),
		Status:     strings.TrimSpace(req.Status),
		LetterType: strings.TrimSpace(req.LetterType),
	}
	letters, total, err := s.store.Repos().Letters.ListLetters(ctx, filters, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list letters: %w", err)
	}
	items := make([]*LetterItem, 0, len(letters))
	for _, l := range letters {
		items = append(items, toLetterItem(l))
	}
	return &ListLettersResponse{Items: items, Total: total}, nil
}

func (s *letterService) ListOwnLetters(ctx context.Context, session *Session, p EventPage) (*ListLettersResponse, error) {
	res, err := s.sessionResident(ctx, s.store.Repos(), session)
	if err != nil {
		return nil, err
	}
	return s.ListLetters(ctx, ListLettersRequest{ResidentID: res.ResidentID, Page: p.Page, Size: p.Size})
}

// UpdateLetterStatus 只允许 processing -> done | rejected
func (s *letterService) UpdateLetterStatus(ctx context.Context, letterID string, req UpdateLetterStatusRequest) (item *LetterItem, err error) {
	defer func() { observe("letter.update_status", err) }()

	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var letter *domain.Letter
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Letters.GetLetter(ctx, letterID)
		if err != nil {
			return mapStoreError(err)
		}
		if current.Status != domain.LetterStatusProcessing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, req.Status)
		}
		current.Status = req.Status
		if req.Notes != "" {
			current.Notes = req.Notes
		}
		if err := r.Letters.UpdateLetter(ctx, current); err != nil {
			return fmt.Errorf("failed to update letter: %w", mapStoreError(err))
		}
		letter = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Letter status changed", zap.String("letter_id", letterID), zap.String("status", letter.Status))
	s.publisher.Publish(ctx, DomainEvent{Type: EventLetterStatusChange, EntityID: letter.LetterID, ResidentID: letter.ResidentID})
	return toLetterItem(letter), nil
}

func (s *letterService) DeleteLetter(ctx context.Context, letterID string) (err error) {
	defer func() { observe("letter.delete", err) }()
	return mapStoreError(s.store.Repos().Letters.DeleteLetter(ctx, letterID))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// BirthEventService 出生登记协调器
type BirthEventService interface {
	CreateBirth(ctx context.Context, req BirthEventRequest) (*CreateBirthResponse, error)
	GetBirth(ctx context.Context, birthEventID string) (*BirthEventItem, error)
	ListBirths(ctx context.Context, familyCardID string, page EventPage) (*ListBirthEventsResponse, error)
	UpdateBirth(ctx context.Context, birthEventID string, req BirthEventRequest) (*BirthEventItem, error)
	DeleteBirth(ctx context.Context, birthEventID string) error
}

type birthEventService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewBirthEventService(store repository.Store, publisher EventPublisher, logger *zap.Logger) BirthEventService {
	return &birthEventService{store: store, publisher: publisherOrNop(publisher), logger: logger}
}

// BirthEventRequest 新生儿信息 + 所属家庭卡
type BirthEventRequest struct {
	FamilyCardID string `json:"family_card_id" validate:"required"`
	FullName     string `json:"full_name" validate:"required,max=100"`
	NIK          string `json:"nik" validate:"omitempty,numeric,len=16"`
	Sex          string `json:"sex" validate:"required,oneof=male female"`
	BirthDate    string `json:"birth_date" validate:"required,date"`
	BirthPlace   string `json:"birth_place" validate:"max=100"`
	FatherName   string `json:"father_name" validate:"max=100"`
	MotherName   string `json:"mother_name" validate:"max=100"`
	Religion     string `json:"religion" validate:"max=30"`
}

func (req *BirthEventRequest) normalize() {
	req.FamilyCardID = strings.TrimSpace(req.FamilyCardID)
	req.FullName = strings.TrimSpace(req.FullName)
	req.NIK = strings.TrimSpace(req.NIK)
	req.Sex = strings.ToLower(strings.TrimSpace(req.Sex))
	req.BirthDate = strings.TrimSpace(req.BirthDate)
	req.BirthPlace = strings.TrimSpace(req.BirthPlace)
	req.FatherName = strings.TrimSpace(req.FatherName)
	req.MotherName = strings.TrimSpace(req.MotherName)
	req.Religion = strings.TrimSpace(req.Religion)
}

type BirthEventItem struct {
	BirthEventID string    `json:"birth_event_id"`
	ResidentID   string    `json:"resident_id"`
	FamilyCardID string    `json:"family_card_id"`
	BirthDate    string    `json:"birth_date"`
	BirthPlace   string    `json:"birth_place"`
	FatherName   string    `json:"father_name"`
	MotherName   string    `json:"mother_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBirthEventItem(e *domain.BirthEvent) *BirthEventItem {
	return &BirthEventItem{
		BirthEventID: e.BirthEventID,
		ResidentID:   e.ResidentID,
		FamilyCardID: e.FamilyCardID,
		BirthDate:    formatDate(&e.BirthDate),
		BirthPlace:   e.BirthPlace,
		FatherName:   e.FatherName,
		MotherName:   e.MotherName,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

type CreateBirthResponse struct {
	Birth      *BirthEventItem `json:"birth"`
	Resident   ResidentItem    `json:"resident"`
	Membership MembershipItem  `json:"membership"`
}

type ListBirthEventsResponse struct {
	Items []*BirthEventItem `json:"items"`
	Total int               `json:"total"`
}

// CreateBirth 新建居民(present，地址取自家庭卡) -> 成员关系(Child) -> 出生登记
func (s *birthEventService) CreateBirth(ctx context.Context, req BirthEventRequest) (resp *CreateBirthResponse, err error) {
	defer func() { observe("birth.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	birthDate := mustDate(req.BirthDate)

	newborn := &domain.Resident{
		NIK:        req.NIK,
		FullName:   req.FullName,
		BirthPlace: req.BirthPlace,
		BirthDate:  &birthDate,
		Sex:        req.Sex,
		Religion:   req.Religion,
		Status:     domain.ResidentStatusPresent,
	}
	membership := &domain.Membership{FamilyCardID: req.FamilyCardID, Relationship: domain.RelationshipChild}
	event := &domain.BirthEvent{
		FamilyCardID: req.FamilyCardID,
		BirthDate:    birthDate,
		BirthPlace:   req.BirthPlace,
		FatherName:   req.FatherName,
		MotherName:   req.MotherName,
	}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		card, err := r.FamilyCards.GetFamilyCard(ctx, req.FamilyCardID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fieldError("family_card_id", "kartu keluarga tidak ditemukan")
			}
			return fmt.Errorf("failed to get family card: %w", err)
		}
		if newborn.NIK != "" {
			if _, err := r.Residents.GetResidentByNIK(ctx, newborn.NIK); err == nil {
				return ErrDuplicateNationalID
			}
		}
		newborn.Address = card.Address
		newborn.RT = card.RT
		newborn.RW = card.RW
		newborn.Hamlet = card.Hamlet
		if err := r.Residents.CreateResident(ctx, newborn); err != nil {
			return fmt.Errorf("failed to create newborn: %w", mapStoreError(err))
		}

		membership.ResidentID = newborn.ResidentID
		if _, err := r.Memberships.UpsertMembership(ctx, membership); err != nil {
			return fmt.Errorf("failed to create membership: %w", mapStoreError(err))
		}

		event.ResidentID = newborn.ResidentID
		if err := r.Births.CreateBirth(ctx, event); err != nil {
			return fmt.Errorf("failed to create birth event: %w", mapStoreError(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create birth event failed", zap.String("family_card_id", req.FamilyCardID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Birth recorded",
		zap.String("birth_event_id", event.BirthEventID),
		zap.String("resident_id", newborn.ResidentID),
		zap.String("family_card_id", event.FamilyCardID),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventBirthRecorded, EntityID: event.BirthEventID, ResidentID: newborn.ResidentID})
	return &CreateBirthResponse{
		Birth:      toBirthEventItem(event),
		Resident:   toResidentItem(newborn),
		Membership: toMembershipItem(membership),
	}, nil
}

func (s *birthEventService) GetBirth(ctx context.Context, birthEventID string) (*BirthEventItem, error) {
	e, err := s.store.Repos().Births.GetBirth(ctx, birthEventID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toBirthEventItem(e), nil
}

func (s *birthEventService) ListBirths(ctx context.Context, familyCardID string, p EventPage) (*ListBirthEventsResponse, error) {
	page, size := normalizePaging(p.Page, p.Size)
	events, total, err := s.store.Repos().Births.ListBirths(ctx, strings.TrimSpace(familyCardID), page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list birth events: %w", err)
	}
	items := make([]*BirthEventItem, 0, len(events))
	for _, e := range events {
		items = append(items, toBirthEventItem(e))
	}
	return &ListBirthEventsResponse{Items: items, Total: total}, nil
}

// UpdateBirth 同步新生儿身份字段；家庭卡变化时移动成员关系
func (s *birthEventService) UpdateBirth(ctx context.Context, birthEventID string, req BirthEventRequest) (item *BirthEventItem, err error) {
	defer func() { observe("birth.update", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	birthDate := mustDate(req.BirthDate)

	var event *domain.BirthEvent
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Births.GetBirth(ctx, birthEventID)
		if err != nil {
			return mapStoreError(err)
		}
		if _, err := r.FamilyCards.GetFamilyCard(ctx, req.FamilyCardID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fieldError("family_card_id", "kartu keluarga tidak ditemukan")
			}
			return fmt.Errorf("failed to get family card: %w", err)
		}

		newborn, err := r.Residents.GetResident(ctx, current.ResidentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get newborn: %w", err)
		}
		if newborn != nil {
			oldNIK := newborn.NIK
			if req.NIK != "" && req.NIK != oldNIK {
				if other, err := r.Residents.GetResidentByNIK(ctx, req.NIK); err == nil && other.ResidentID != newborn.ResidentID {
					return ErrDuplicateNationalID
				}
			}
			newborn.NIK = req.NIK
			newborn.FullName = req.FullName
			newborn.Sex = req.Sex
			newborn.BirthDate = &birthDate
			newborn.BirthPlace = req.BirthPlace
			newborn.Religion = req.Religion
			if err := r.Residents.UpdateResident(ctx, newborn); err != nil {
				return fmt.Errorf("failed to update newborn: %w", mapStoreError(err))
			}
			if req.NIK != oldNIK {
				if _, err := renameGuestAccount(ctx, r, newborn.ResidentID, oldNIK, req.NIK); err != nil {
					return err
				}
			}
			if current.FamilyCardID != req.FamilyCardID {
				m := &domain.Membership{
					ResidentID:   newborn.ResidentID,
					FamilyCardID: req.FamilyCardID,
					Relationship: domain.RelationshipChild,
				}
				if _, err := r.Memberships.UpsertMembership(ctx, m); err != nil {
					return fmt.Errorf("failed to move membership: %w", mapStoreError(err))
				}
			}
		}

		current.FamilyCardID = req.FamilyCardID
		current.BirthDate = birthDate
		current.BirthPlace = req.BirthPlace
		current.FatherName = req.FatherName
		current.MotherName = req.MotherName
		if err := r.Births.UpdateBirth(ctx, current); err != nil {
			return fmt.Errorf("failed to update birth event: %w", mapStoreError(err))
		}
		event = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toBirthEventItem(event), nil
}

// DeleteBirth 只删除登记记录；居民和成员关系保留
func (s *birthEventService) DeleteBirth(ctx context.Context, birthEventID string) (err error) {
	defer func() { observe("birth.delete", err) }()

	repos := s.store.Repos()
	e, err := repos.Births.GetBirth(ctx, birthEventID)
	if err != nil {
		return mapStoreError(err)
	}
	if err := repos.Births.DeleteBirth(ctx, birthEventID); err != nil {
		return mapStoreError(err)
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventBirthDeleted, EntityID: birthEventID, ResidentID: e.ResidentID})
	return nil
}

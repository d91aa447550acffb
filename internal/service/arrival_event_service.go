package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// ArrivalEventService 迁入登记协调器
type ArrivalEventService interface {
	CreateArrival(ctx context.Context, req CreateArrivalRequest) (*CreateArrivalResponse, error)
	GetArrival(ctx context.Context, arrivalEventID string) (*ArrivalEventItem, error)
	ListArrivals(ctx context.Context, page EventPage) (*ListArrivalEventsResponse, error)
	UpdateArrival(ctx context.Context, arrivalEventID string, req ArrivalEventRequest) (*ArrivalEventItem, error)
	DeleteArrival(ctx context.Context, arrivalEventID string) error
}

type arrivalEventService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewArrivalEventService(store repository.Store, publisher EventPublisher, logger *zap.Logger) ArrivalEventService {
	return &arrivalEventService{store: store, publisher: publisherOrNop(publisher), logger: logger}
}

type ArrivalEventRequest struct {
	NIK                string `json:"nik" validate:"required,numeric,len=16"`
	FullName           string `json:"full_name" validate:"required,max=100"`
	Sex                string `json:"sex" validate:"required,oneof=male female"`
	ArrivalDate        string `json:"arrival_date" validate:"required,date"`
	OriginAddress      string `json:"origin_address"`
	ReporterResidentID string `json:"reporter_resident_id"`
}

func (req *ArrivalEventRequest) normalize() {
	req.NIK = strings.TrimSpace(req.NIK)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Sex = strings.ToLower(strings.TrimSpace(req.Sex))
	req.ArrivalDate = strings.TrimSpace(req.ArrivalDate)
	req.OriginAddress = strings.TrimSpace(req.OriginAddress)
	req.ReporterResidentID = strings.TrimSpace(req.ReporterResidentID)
}

// CreateArrivalRequest CreateResident=true 时按迁入信息新建居民；CreateAccount 另外开通 guest 账号
type CreateArrivalRequest struct {
	ArrivalEventRequest
	CreateResident bool   `json:"create_resident"`
	CreateAccount  bool   `json:"create_account"`
	Address        string `json:"address"`
	RT             string `json:"rt" validate:"max=5"`
	RW             string `json:"rw" validate:"max=5"`
	Hamlet         string `json:"hamlet" validate:"max=100"`
}

type ArrivalEventItem struct {
	ArrivalEventID     string    `json:"arrival_event_id"`
	NIK                string    `json:"nik"`
	FullName           string    `json:"full_name"`
	Sex                string    `json:"sex"`
	ArrivalDate        string    `json:"arrival_date"`
	OriginAddress      string    `json:"origin_address"`
	ReporterResidentID string    `json:"reporter_resident_id,omitempty"`
	ResidentID         string    `json:"resident_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toArrivalEventItem(e *domain.ArrivalEvent) *ArrivalEventItem {
	return &ArrivalEventItem{
		ArrivalEventID:     e.ArrivalEventID,
		NIK:                e.NIK,
		FullName:           e.FullName,
		Sex:                e.Sex,
		ArrivalDate:        formatDate(&e.ArrivalDate),
		OriginAddress:      e.OriginAddress,
		ReporterResidentID: e.ReporterResidentID,
		ResidentID:         e.ResidentID,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

type CreateArrivalResponse struct {
	Arrival  *ArrivalEventItem   `json:"arrival"`
	Resident *ResidentItem       `json:"resident,omitempty"`
	Account  *ProvisionedAccount `json:"account,omitempty"`
}

type ListArrivalEventsResponse struct {
	Items []*ArrivalEventItem `json:"items"`
	Total int                 `json:"total"`
}

func (s *arrivalEventService) CreateArrival(ctx context.Context, req CreateArrivalRequest) (resp *CreateArrivalResponse, err error) {
	defer func() { observe("arrival.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	event := &domain.ArrivalEvent{
		NIK:                req.NIK,
		FullName:           req.FullName,
		Sex:                req.Sex,
		ArrivalDate:        mustDate(req.ArrivalDate),
		OriginAddress:      req.OriginAddress,
		ReporterResidentID: req.ReporterResidentID,
	}
	resp = &CreateArrivalResponse{}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if req.ReporterResidentID != "" {
			if _, err := requireResident(ctx, r, "reporter_resident_id", req.ReporterResidentID); err != nil {
				return err
			}
		}
		if req.CreateResident {
			if _, err := r.Residents.GetResidentByNIK(ctx, req.NIK); err == nil {
				return ErrDuplicateNationalID
			}
			resident := &domain.Resident{
				NIK:      req.NIK,
				FullName: req.FullName,
				Sex:      req.Sex,
				Address:  strings.TrimSpace(req.Address),
				RT:       strings.TrimSpace(req.RT),
				RW:       strings.TrimSpace(req.RW),
				Hamlet:   strings.TrimSpace(req.Hamlet),
				Status:   domain.ResidentStatusPresent,
			}
			if err := r.Residents.CreateResident(ctx, resident); err != nil {
				return fmt.Errorf("failed to create resident: %w", mapStoreError(err))
			}
			event.ResidentID = resident.ResidentID
			item := toResidentItem(resident)
			resp.Resident = &item

			if req.CreateAccount {
				acc, err := provisionGuestAccount(ctx, r, resident, resident.NIK)
				if err != nil {
					return err
				}
				resp.Account = acc
			}
		}
		if err := r.Arrivals.CreateArrival(ctx, event); err != nil {
			return fmt.Errorf("failed to create arrival event: %w", mapStoreError(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create arrival event failed", zap.String("nik", req.NIK), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Arrival recorded",
		zap.String("arrival_event_id", event.ArrivalEventID),
		zap.String("resident_id", event.ResidentID),
		zap.Bool("account_created", resp.Account != nil),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventArrivalRecorded, EntityID: event.ArrivalEventID, ResidentID: event.ResidentID})
	resp.Arrival = toArrivalEventItem(event)
	return resp, nil
}

func (s *arrivalEventService) GetArrival(ctx context.Context, arrivalEventID string) (*ArrivalEventItem, error) {
	e, err := s.store.Repos().Arrivals.GetArrival(ctx, arrivalEventID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toArrivalEventItem(e), nil
}

func (s *arrivalEventService) ListArrivals(ctx context.Context, p EventPage) (*ListArrivalEventsResponse, error) {
	page, size := normalizePaging(p.Page, p.Size)
	events, total, err := s.store.Repos().Arrivals.ListArrivals(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list arrival events: %w", err)
	}
	items := make([]*ArrivalEventItem, 0, len(events))
	for _, e := range events {
		items = append(items, toArrivalEventItem(e))
	}
	return &ListArrivalEventsResponse{Items: items, Total: total}, nil
}

// UpdateArrival 只修改登记记录本身，不影响已创建的居民
func (s *arrivalEventService) UpdateArrival(ctx context.Context, arrivalEventID string, req ArrivalEventRequest) (item *ArrivalEventItem, err error) {
	defer func() { observe("arrival.update", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var event *domain.ArrivalEvent
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Arrivals.GetArrival(ctx, arrivalEventID)
		if err != nil {
			return mapStoreError(err)
		}
		if req.ReporterResidentID != "" && req.ReporterResidentID != current.ReporterResidentID {
			if _, err := requireResident(ctx, r, "reporter_resident_id", req.ReporterResidentID); err != nil {
				return err
			}
		}
		current.NIK = req.NIK
		current.FullName = req.FullName
		current.Sex = req.Sex
		current.ArrivalDate = mustDate(req.ArrivalDate)
		current.OriginAddress = req.OriginAddress
		current.ReporterResidentID = req.ReporterResidentID
		if err := r.Arrivals.UpdateArrival(ctx, current); err != nil {
			return fmt.Errorf("failed to update arrival event: %w", mapStoreError(err))
		}
		event = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toArrivalEventItem(event), nil
}

// DeleteArrival 只删除登记记录
func (s *arrivalEventService) DeleteArrival(ctx context.Context, arrivalEventID string) (err error) {
	defer func() { observe("arrival.delete", err) }()

	if err := s.store.Repos().Arrivals.DeleteArrival(ctx, arrivalEventID); err != nil {
		return mapStoreError(err)
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventArrivalDeleted, EntityID: arrivalEventID})
	return nil
}

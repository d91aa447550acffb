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

// DepartureEventService 迁出登记协调器
type DepartureEventService interface {
	CreateDeparture(ctx context.Context, req DepartureEventRequest) (*DepartureEventItem, error)
	GetDeparture(ctx context.Context, departureEventID string) (*DepartureEventItem, error)
	ListDepartures(ctx context.Context, page EventPage) (*ListDepartureEventsResponse, error)
	UpdateDeparture(ctx context.Context, departureEventID string, req DepartureEventRequest) (*DepartureEventItem, error)
	DeleteDeparture(ctx context.Context, departureEventID string) error
}

type departureEventService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewDepartureEventService(store repository.Store, publisher EventPublisher, logger *zap.Logger) DepartureEventService {
	return &departureEventService{store: store, publisher: publisherOrNop(publisher), logger: logger}
}

type DepartureEventRequest struct {
	ResidentID    string `json:"resident_id" validate:"required"`
	DepartureDate string `json:"departure_date" validate:"required,date"`
	Reason        string `json:"reason" validate:"required,max=255"`
	Destination   string `json:"destination"`
}

func (req *DepartureEventRequest) normalize() {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.DepartureDate = strings.TrimSpace(req.DepartureDate)
	req.Reason = strings.TrimSpace(req.Reason)
	req.Destination = strings.TrimSpace(req.Destination)
}

type DepartureEventItem struct {
	DepartureEventID string    `json:"departure_event_id"`
	ResidentID       string    `json:"resident_id"`
	DepartureDate    string    `json:"departure_date"`
	Reason           string    `json:"reason"`
	Destination      string    `json:"destination"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDepartureEventItem(e *domain.DepartureEvent) *DepartureEventItem {
	return &DepartureEventItem{
		DepartureEventID: e.DepartureEventID,
		ResidentID:       e.ResidentID,
		DepartureDate:    formatDate(&e.DepartureDate),
		Reason:           e.Reason,
		Destination:      e.Destination,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

type ListDepartureEventsResponse struct {
	Items []*DepartureEventItem `json:"items"`
	Total int                   `json:"total"`
}

// CreateDeparture 居民必须为 present；登记后居民为 relocated
func (s *departureEventService) CreateDeparture(ctx context.Context, req DepartureEventRequest) (item *DepartureEventItem, err error) {
	defer func() { observe("departure.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	event := &domain.DepartureEvent{
		ResidentID:    req.ResidentID,
		DepartureDate: mustDate(req.DepartureDate),
		Reason:        req.Reason,
		Destination:   req.Destination,
	}
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := applyTerminalStatus(ctx, r, req.ResidentID, domain.ResidentStatusRelocated); err != nil {
			return err
		}
		if err := r.Departures.CreateDeparture(ctx, event); err != nil {
			return fmt.Errorf("failed to create departure event: %w", mapStoreError(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create departure event failed", zap.String("resident_id", req.ResidentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Departure recorded",
		zap.String("departure_event_id", event.DepartureEventID),
		zap.String("resident_id", event.ResidentID),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventDepartureRecorded, EntityID: event.DepartureEventID, ResidentID: event.ResidentID})
	return toDepartureEventItem(event), nil
}

func (s *departureEventService) GetDeparture(ctx context.Context, departureEventID string) (*DepartureEventItem, error) {
	e, err := s.store.Repos().Departures.GetDeparture(ctx, departureEventID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toDepartureEventItem(e), nil
}

func (s *departureEventService) ListDepartures(ctx context.Context, p EventPage) (*ListDepartureEventsResponse, error) {
	page, size := normalizePaging(p.Page, p.Size)
	events, total, err := s.store.Repos().Departures.ListDepartures(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list departure events: %w", err)
	}
	items := make([]*DepartureEventItem, 0, len(events))
	for _, e := range events {
		items = append(items, toDepartureEventItem(e))
	}
	return &ListDepartureEventsResponse{Items: items, Total: total}, nil
}

// UpdateDeparture 更换居民时：旧居民（仍为 relocated）恢复 present，新居民置为 relocated
func (s *departureEventService) UpdateDeparture(ctx context.Context, departureEventID string, req DepartureEventRequest) (item *DepartureEventItem, err error) {
	defer func() { observe("departure.update", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var event *domain.DepartureEvent
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Departures.GetDeparture(ctx, departureEventID)
		if err != nil {
			return mapStoreError(err)
		}
		if current.ResidentID != req.ResidentID {
			if _, err := revertTerminalStatus(ctx, r, current.ResidentID, domain.ResidentStatusRelocated); err != nil {
				return err
			}
			if _, err := applyTerminalStatus(ctx, r, req.ResidentID, domain.ResidentStatusRelocated); err != nil {
				return err
			}
		}
		current.ResidentID = req.ResidentID
		current.DepartureDate = mustDate(req.DepartureDate)
		current.Reason = req.Reason
		current.Destination = req.Destination
		if err := r.Departures.UpdateDeparture(ctx, current); err != nil {
			return fmt.Errorf("failed to update departure event: %w", mapStoreError(err))
		}
		event = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventDepartureUpdated, EntityID: event.DepartureEventID, ResidentID: event.ResidentID})
	return toDepartureEventItem(event), nil
}

// DeleteDeparture 居民仍为 relocated 时恢复为 present
func (s *departureEventService) DeleteDeparture(ctx context.Context, departureEventID string) (err error) {
	defer func() { observe("departure.delete", err) }()

	var residentID string
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Departures.GetDeparture(ctx, departureEventID)
		if err != nil {
			return mapStoreError(err)
		}
		residentID = current.ResidentID
		if err := r.Departures.DeleteDeparture(ctx, departureEventID); err != nil {
			return mapStoreError(err)
		}
		_, err = revertTerminalStatus(ctx, r, current.ResidentID, domain.ResidentStatusRelocated)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("Departure event deleted",
		zap.String("departure_event_id", departureEventID),
		zap.String("resident_id", residentID),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventDepartureDeleted, EntityID: departureEventID, ResidentID: residentID})
	return nil
}

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

// DeathEventService 死亡登记协调器
type DeathEventService interface {
	CreateDeath(ctx context.Context, req DeathEventRequest) (*DeathEventItem, error)
	GetDeath(ctx context.Context, deathEventID string) (*DeathEventItem, error)
	ListDeaths(ctx context.Context, page EventPage) (*ListDeathEventsResponse, error)
	UpdateDeath(ctx context.Context, deathEventID string, req DeathEventRequest) (*DeathEventItem, error)
	DeleteDeath(ctx context.Context, deathEventID string) error
}

type deathEventService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewDeathEventService(store repository.Store, publisher EventPublisher, logger *zap.Logger) DeathEventService {
	return &deathEventService{store: store, publisher: publisherOrNop(publisher), logger: logger}
}

type DeathEventRequest struct {
	ResidentID  string `json:"resident_id" validate:"required"`
	DateOfDeath string `json:"date_of_death" validate:"required,date"`
	Cause       string `json:"cause" validate:"required,max=255"`
	Place       string `json:"place" validate:"max=100"`
}

func (req *DeathEventRequest) normalize() {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.DateOfDeath = strings.TrimSpace(req.DateOfDeath)
	req.Cause = strings.TrimSpace(req.Cause)
	req.Place = strings.TrimSpace(req.Place)
}

type DeathEventItem struct {
	DeathEventID string    `json:"death_event_id"`
	ResidentID   string    `json:"resident_id"`
	DateOfDeath  string    `json:"date_of_death"`
	Cause        string    `json:"cause"`
	Place        string    `json:"place"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDeathEventItem(e *domain.DeathEvent) *DeathEventItem {
	return &DeathEventItem{
		DeathEventID: e.DeathEventID,
		ResidentID:   e.ResidentID,
		DateOfDeath:  formatDate(&e.DateOfDeath),
		Cause:        e.Cause,
		Place:        e.Place,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

type ListDeathEventsResponse struct {
	Items []*DeathEventItem `json:"items"`
	Total int               `json:"total"`
}

// CreateDeath 居民必须为 present；登记后居民为 deceased
func (s *deathEventService) CreateDeath(ctx context.Context, req DeathEventRequest) (item *DeathEventItem, err error) {
	defer func() { observe("death.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	event := &domain.DeathEvent{
		ResidentID:  req.ResidentID,
		DateOfDeath: mustDate(req.DateOfDeath),
		Cause:       req.Cause,
		Place:       req.Place,
	}
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := applyTerminalStatus(ctx, r, req.ResidentID, domain.ResidentStatusDeceased); err != nil {
			return err
		}
		if err := r.Deaths.CreateDeath(ctx, event); err != nil {
			return fmt.Errorf("failed to create death event: %w", mapStoreError(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create death event failed", zap.String("resident_id", req.ResidentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Death recorded",
		zap.String("death_event_id", event.DeathEventID),
		zap.String("resident_id", event.ResidentID),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventDeathRecorded, EntityID: event.DeathEventID, ResidentID: event.ResidentID})
	return toDeathEventItem(event), nil
}

func (s *deathEventService) GetDeath(ctx context.Context, deathEventID string) (*DeathEventItem, error) {
	e, err := s.store.Repos().Deaths.GetDeath(ctx, deathEventID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toDeathEventItem(e), nil
}

func (s *deathEventService) ListDeaths(ctx context.Context, p EventPage) (*ListDeathEventsResponse, error) {
	page, size := normalizePaging(p.Page, p.Size)
	events, total, err := s.store.Repos().Deaths.ListDeaths(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list death events: %w", err)
	}
	items := make([]*DeathEventItem, 0, len(events))
	for _, e := range events {
		items = append(items, toDeathEventItem(e))
	}
	return &ListDeathEventsResponse{Items: items, Total: total}, nil
}

// UpdateDeath 更换居民时：旧居民（仍为 deceased）恢复 present，新居民置为 deceased
func (s *deathEventService) UpdateDeath(ctx context.Context, deathEventID string, req DeathEventRequest) (item *DeathEventItem, err error) {
	defer func() { observe("death.update", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var event *domain.DeathEvent
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Deaths.GetDeath(ctx, deathEventID)
		if err != nil {
			return mapStoreError(err)
		}
		if current.ResidentID != req.ResidentID {
			if _, err := revertTerminalStatus(ctx, r, current.ResidentID, domain.ResidentStatusDeceased); err != nil {
				return err
			}
			if _, err := applyTerminalStatus(ctx, r, req.ResidentID, domain.ResidentStatusDeceased); err != nil {
				return err
			}
		}
		current.ResidentID = req.ResidentID
		current.DateOfDeath = mustDate(req.DateOfDeath)
		current.Cause = req.Cause
		current.Place = req.Place
		if err := r.Deaths.UpdateDeath(ctx, current); err != nil {
			return fmt.Errorf("failed to update death event: %w", mapStoreError(err))
		}
		event = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventDeathUpdated, EntityID: event.DeathEventID, ResidentID: event.ResidentID})
	return toDeathEventItem(event), nil
}

// DeleteDeath 居民仍为 deceased 时恢复为 present
func (s *deathEventService) DeleteDeath(ctx context.Context, deathEventID string) (err error) {
	defer func() { observe("death.delete", err) }()

	var residentID string
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Deaths.GetDeath(ctx, deathEventID)
		if err != nil {
			return mapStoreError(err)
		}
		residentID = current.ResidentID
		if err := r.Deaths.DeleteDeath(ctx, deathEventID); err != nil {
			return mapStoreError(err)
		}
		_, err = revertTerminalStatus(ctx, r, current.ResidentID, domain.ResidentStatusDeceased)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("Death event deleted",
		zap.String("death_event_id", deathEventID),
		zap.String("resident_id", residentID),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventDeathDeleted, EntityID: deathEventID, ResidentID: residentID})
	return nil
}

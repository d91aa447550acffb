package repository

import (
	"context"

	"sipenduk/internal/domain"
)

type BirthEventsRepository interface {
	GetBirth(ctx context.Context, birthEventID string) (*domain.BirthEvent, error)
	ListBirths(ctx context.Context, familyCardID string, page, size int) ([]*domain.BirthEvent, int, error)
	CreateBirth(ctx context.Context, e *domain.BirthEvent) error
	UpdateBirth(ctx context.Context, e *domain.BirthEvent) error
	DeleteBirth(ctx context.Context, birthEventID string) error
}

type DeathEventsRepository interface {
	GetDeath(ctx context.Context, deathEventID string) (*domain.DeathEvent, error)
	GetDeathByResident(ctx context.Context, residentID string) (*domain.DeathEvent, error)
	ListDeaths(ctx context.Context, page, size int) ([]*domain.DeathEvent, int, error)
	CreateDeath(ctx context.Context, e *domain.DeathEvent) error
	UpdateDeath(ctx context.Context, e *domain.DeathEvent) error
	DeleteDeath(ctx context.Context, deathEventID string) error
}

type ArrivalEventsRepository interface {
	GetArrival(ctx context.Context, arrivalEventID string) (*domain.ArrivalEvent, error)
	ListArrivals(ctx context.Context, page, size int) ([]*domain.ArrivalEvent, int, error)
	CreateArrival(ctx context.Context, e *domain.ArrivalEvent) error
	UpdateArrival(ctx context.Context, e *domain.ArrivalEvent) error
	DeleteArrival(ctx context.Context, arrivalEventID string) error
}

type DepartureEventsRepository interface {
	GetDeparture(ctx context.Context, departureEventID string) (*domain.DepartureEvent, error)
	GetDepartureByResident(ctx context.Context, residentID string) (*domain.DepartureEvent, error)
	ListDepartures(ctx context.Context, page, size int) ([]*domain.DepartureEvent, int, error)
	CreateDeparture(ctx context.Context, e *domain.DepartureEvent) error
	UpdateDeparture(ctx context.Context, e *domain.DepartureEvent) error
	DeleteDeparture(ctx context.Context, departureEventID string) error
}

package repository

import (
	"context"

	"sipenduk/internal/domain"
)

type LettersRepository interface {
	GetLetter(ctx context.Context, letterID string) (*domain.Letter, error)
	ListLetters(ctx context.Context, filters LetterFilters, page, size int) ([]*domain.Letter, int, error)
	CreateLetter(ctx context.Context, letter *domain.Letter) error
	UpdateLetter(ctx context.Context, letter *domain.Letter) error
	DeleteLetter(ctx context.Context, letterID string) error
}

type LetterFilters struct {
	ResidentID string
	Status     string
	LetterType string
}

type AnnouncementsRepository interface {
	GetAnnouncement(ctx context.Context, announcementID string) (*domain.Announcement, error)
	ListAnnouncements(ctx context.Context, page, size int) ([]*domain.Announcement, int, error)
	CreateAnnouncement(ctx context.Context, a *domain.Announcement) error
	UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error
	DeleteAnnouncement(ctx context.Context, announcementID string) error
}

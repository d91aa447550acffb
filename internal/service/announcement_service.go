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
	"sipenduk/internal/store"
)

// AnnouncementListCacheKey 公告列表缓存键
const AnnouncementListCacheKey = "announcement:list"

// AnnouncementService 公告 CRUD；列表走 KV 读穿缓存，任何写操作都会删除缓存
type AnnouncementService interface {
	CreateAnnouncement(ctx context.Context, session *Session, req AnnouncementRequest) (*domain.Announcement, error)
	GetAnnouncement(ctx context.Context, announcementID string) (*domain.Announcement, error)
	ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error)
	UpdateAnnouncement(ctx context.Context, announcementID string, req AnnouncementRequest) (*domain.Announcement, error)
	DeleteAnnouncement(ctx context.Context, announcementID string) error
}

type announcementService struct {
	store  repository.Store
	cache  store.KV // 可为 nil（不缓存）
	ttl    time.Duration
	logger *zap.Logger
}

func NewAnnouncementService(st repository.Store, cache store.KV, ttl time.Duration, logger *zap.Logger) AnnouncementService {
	return &announcementService{store: st, cache: cache, ttl: ttl, logger: logger}
}

type AnnouncementRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required"`
}

// 列表只缓存最新的一页
const announcementListSize = 50

func (s *announcementService) CreateAnnouncement(ctx context.Context, session *Session, req AnnouncementRequest) (*domain.Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	a := &domain.Announcement{Title: req.Title, Body: req.Body}
	if session != nil {
		a.Author = session.Name
	}
	if err := s.store.Repos().Announcements.CreateAnnouncement(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}
	s.invalidate(ctx)
	return a, nil
}

func (s *announcementService) GetAnnouncement(ctx context.Context, announcementID string) (*domain.Announcement, error) {
	a, err := s.store.Repos().Announcements.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return a, nil
}

func (s *announcementService) ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error) {
	if s.cache != nil {
		var cached []*domain.Announcement
		err := store.GetJSON(ctx, s.cache, AnnouncementListCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Announcement cache read failed", zap.Error(err))
		}
	}

	items, _, err := s.store.Repos().Announcements.ListAnnouncements(ctx, 1, announcementListSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	if items == nil {
		items = []*domain.Announcement{}
	}
	if s.cache != nil {
		if err := store.SetJSON(ctx, s.cache, AnnouncementListCacheKey, items, s.ttl); err != nil {
			s.logger.Warn("Announcement cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

func (s *announcementService) UpdateAnnouncement(ctx context.Context, announcementID string, req AnnouncementRequest) (*domain.Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	repo := s.store.Repos().Announcements
	a, err := repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	a.Title = req.Title
	a.Body = req.Body
	if err := repo.UpdateAnnouncement(ctx, a); err != nil {
		return nil, mapStoreError(err)
	}
	s.invalidate(ctx)
	return a, nil
}

func (s *announcementService) DeleteAnnouncement(ctx context.Context, announcementID string) error {
	if err := s.store.Repos().Announcements.DeleteAnnouncement(ctx, announcementID); err != nil {
		return mapStoreError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *announcementService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, AnnouncementListCacheKey); err != nil {
		s.logger.Warn("Announcement cache invalidation failed", zap.Error(err))
	}
}

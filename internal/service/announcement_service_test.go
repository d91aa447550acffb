package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipenduk/internal/domain"
	"sipenduk/internal/store"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, store.KV) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, store.NewRedisKV(client)
}

func TestAnnouncementService_ReadThroughCache(t *testing.T) {
	mr, kv := setupTestKV(t)
	st := newTestStore()
	svc := NewAnnouncementService(st, kv, time.Minute, getTestLogger())
	ctx := context.Background()

	session := &Session{Name: "Kepala Desa"}
	first, err := svc.CreateAnnouncement(ctx, session, AnnouncementRequest{Title: "Kerja bakti", Body: "Minggu pagi"})
	require.NoError(t, err)
	assert.Equal(t, "Kepala Desa", first.Author)
	assert.False(t, mr.Exists(AnnouncementListCacheKey))

	list, err := svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, mr.Exists(AnnouncementListCacheKey))
	assert.Equal(t, time.Minute, mr.TTL(AnnouncementListCacheKey))

	// 绕过协调器直接写库：缓存命中时看不到
	require.NoError(t, st.Repos().Announcements.CreateAnnouncement(ctx, &domain.Announcement{Title: "Posyandu", Body: "Balai desa"}))
	list, err = svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.UpdateAnnouncement(ctx, first.AnnouncementID, AnnouncementRequest{Title: "Kerja bakti (ralat)", Body: "Sabtu pagi"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(AnnouncementListCacheKey))

	list, err = svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.DeleteAnnouncement(ctx, first.AnnouncementID))
	assert.False(t, mr.Exists(AnnouncementListCacheKey))
	assert.ErrorIs(t, svc.DeleteAnnouncement(ctx, first.AnnouncementID), ErrNotFound)
}

func TestAnnouncementService_WithoutCache(t *testing.T) {
	svc := NewAnnouncementService(newTestStore(), nil, 0, getTestLogger())
	ctx := context.Background()

	list, err := svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = svc.CreateAnnouncement(ctx, nil, AnnouncementRequest{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "body")
}

func TestAnnouncementService_CacheUnavailable(t *testing.T) {
	mr, kv := setupTestKV(t)
	svc := NewAnnouncementService(newTestStore(), kv, time.Minute, getTestLogger())
	ctx := context.Background()

	mr.Close()
	_, err := svc.CreateAnnouncement(ctx, nil, AnnouncementRequest{Title: "Posyandu", Body: "Balai desa"})
	require.NoError(t, err)
	list, err := svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

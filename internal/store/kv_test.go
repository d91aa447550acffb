package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_GetSetDel(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "penduduk:1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "penduduk:1", `{"nama":"Budi"}`, 0))
	v, err := kv.Get(ctx, "penduduk:1")
	require.NoError(t, err)
	assert.Equal(t, `{"nama":"Budi"}`, v)

	require.NoError(t, kv.Set(ctx, "announcement:list", "[]", time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "announcement:list")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Del(ctx, "penduduk:1", "missing"))
	_, err = kv.Get(ctx, "penduduk:1")
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, kv.Del(ctx))
}

func TestRedisKV_ScanKeys(t *testing.T) {
	_, kv := setupTestKV(t)
	ctx := context.Background()

	for i := 0; i < 450; i++ {
		require.NoError(t, kv.Set(ctx, RecordKey("kk", strconv.Itoa(i)), "{}", 0))
	}
	require.NoError(t, kv.Set(ctx, "penduduk:1", "{}", 0))

	keys, err := kv.ScanKeys(ctx, "kk:*")
	require.NoError(t, err)
	assert.Len(t, keys, 450)
}

func TestScanPrefix_SkipsDerivedKeys(t *testing.T) {
	_, kv := setupTestKV(t)
	ctx := context.Background()

	type legacy struct {
		Nama string `json:"nama"`
	}
	require.NoError(t, SetJSON(ctx, kv, RecordKey("penduduk", "2"), legacy{Nama: "Siti"}, 0))
	require.NoError(t, SetJSON(ctx, kv, RecordKey("penduduk", "1"), legacy{Nama: "Budi"}, 0))
	require.NoError(t, kv.Set(ctx, "penduduk:1:foto", "binary", 0))
	require.NoError(t, kv.Set(ctx, "pendudukx:9", "{}", 0))

	recs, err := ScanPrefix(ctx, kv, "penduduk")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].ID)
	assert.Equal(t, "2", recs[1].ID)

	var got legacy
	require.NoError(t, GetJSON(ctx, kv, recs[1].Key, &got))
	assert.Equal(t, "Siti", got.Nama)
}

func TestRedisKV_MGet(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "kk:1", `{"no_kk":"1"}`, 0))
	mr.HSet("kk:2", "no_kk", "2")

	vals, err := kv.MGet(ctx, "kk:1", "kk:2", "kk:3")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.True(t, vals[0].OK)
	assert.Equal(t, `{"no_kk":"1"}`, vals[0].Data)
	assert.False(t, vals[1].OK, "non-string keys are not records")
	assert.False(t, vals[2].OK)

	vals, err = kv.MGet(ctx)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestScanPrefix_ManyBatches(t *testing.T) {
	_, kv := setupTestKV(t)
	ctx := context.Background()

	for i := 0; i < scanBatch*2+7; i++ {
		require.NoError(t, kv.Set(ctx, RecordKey("anggota_kk", strconv.Itoa(i)), "{}", 0))
	}
	recs, err := ScanPrefix(ctx, kv, "anggota_kk")
	require.NoError(t, err)
	assert.Len(t, recs, scanBatch*2+7)
}

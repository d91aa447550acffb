package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RecordKey 记录键格式 "<entity>:<id>"
func RecordKey(entity, id string) string {
	return entity + ":" + id
}

// Record ScanPrefix 返回的一条原始记录
type Record struct {
	Key   string
	ID    string
	Value json.RawMessage
}

// GetJSON 读取并解码 JSON 记录；不存在时返回 ErrMiss
func GetJSON(ctx context.Context, kv KV, key string, out any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON 编码并写入 JSON 记录
func SetJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, string(b), ttl)
}

// ScanPrefix 读取 "<entity>:*" 下的全部记录，按键排序，分批 MGET。
// 扫描与读取之间没有快照语义，期间被删除的键会被跳过。
func ScanPrefix(ctx context.Context, kv KV, entity string) ([]Record, error) {
	prefix := entity + ":"
	keys, err := kv.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	sort.Strings(keys)

	ids := make([]string, 0, len(keys))
	level := keys[:0]
	for _, k := range keys {
		id := strings.TrimPrefix(k, prefix)
		// 只取一级键，跳过 "<entity>:<id>:<sub>" 之类的派生键
		if id == "" || strings.Contains(id, ":") {
			continue
		}
		level = append(level, k)
		ids = append(ids, id)
	}

	out := make([]Record, 0, len(level))
	for start := 0; start < len(level); start += scanBatch {
		end := min(start+scanBatch, len(level))
		vals, err := kv.MGet(ctx, level[start:end]...)
		if err != nil {
			return nil, fmt.Errorf("mget %s: %w", prefix, err)
		}
		for i, v := range vals {
			if !v.OK {
				continue
			}
			out = append(out, Record{Key: level[start+i], ID: ids[start+i], Value: json.RawMessage(v.Data)})
		}
	}
	return out, nil
}

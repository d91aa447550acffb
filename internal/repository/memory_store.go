package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"sipenduk/internal/domain"
)

// MemoryStore 内存版 Store（DB 未启用时使用，也用于单元测试）。
// 约束名与 schema.sql 保持一致；WithinTx 以快照方式实现回滚。
type MemoryStore struct {
	txMu sync.Mutex   // 串行化写事务
	mu   sync.RWMutex // 保护 st
	st   *memState
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		st:  newMemState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*MemoryStore)(nil)

// memRow seq 记录插入顺序（对应 created_at 排序）
type memRow[T any] struct {
	seq int64
	v   T
}

type memState struct {
	seq           int64
	residents     map[string]memRow[domain.Resident]
	familyCards   map[string]memRow[domain.FamilyCard]
	memberships   map[string]memRow[domain.Membership]
	births        map[string]memRow[domain.BirthEvent]
	deaths        map[string]memRow[domain.DeathEvent]
	arrivals      map[string]memRow[domain.ArrivalEvent]
	departures    map[string]memRow[domain.DepartureEvent]
	users         map[string]memRow[domain.User]
	letters       map[string]memRow[domain.Letter]
	announcements map[string]memRow[domain.Announcement]
}

func newMemState() *memState {
	return &memState{
		residents:     map[string]memRow[domain.Resident]{},
		familyCards:   map[string]memRow[domain.FamilyCard]{},
		memberships:   map[string]memRow[domain.Membership]{},
		births:        map[string]memRow[domain.BirthEvent]{},
		deaths:        map[string]memRow[domain.DeathEvent]{},
		arrivals:      map[string]memRow[domain.ArrivalEvent]{},
		departures:    map[string]memRow[domain.DepartureEvent]{},
		users:         map[string]memRow[domain.User]{},
		letters:       map[string]memRow[domain.Letter]{},
		announcements: map[string]memRow[domain.Announcement]{},
	}
}

func cloneMap[T any](m map[string]memRow[T]) map[string]memRow[T] {
	out := make(map[string]memRow[T], len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *memState) clone() *memState {
	return &memState{
		seq:           st.seq,
		residents:     cloneMap(st.residents),
		familyCards:   cloneMap(st.familyCards),
		memberships:   cloneMap(st.memberships),
		births:        cloneMap(st.births),
		deaths:        cloneMap(st.deaths),
		arrivals:      cloneMap(st.arrivals),
		departures:    cloneMap(st.departures),
		users:         cloneMap(st.users),
		letters:       cloneMap(st.letters),
		announcements: cloneMap(st.announcements),
	}
}

func (st *memState) nextSeq() int64 {
	st.seq++
	return st.seq
}

func (s *MemoryStore) Repos() Repos {
	return s.repos(false)
}

// WithinTx fn 返回 error 时恢复到执行前的快照
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(s.repos(true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) repos(inTx bool) Repos {
	b := memBase{s: s, inTx: inTx}
	return Repos{
		Residents:     &memResidents{b},
		FamilyCards:   &memFamilyCards{b},
		Memberships:   &memMemberships{b},
		Births:        &memBirths{b},
		Deaths:        &memDeaths{b},
		Arrivals:      &memArrivals{b},
		Departures:    &memDepartures{b},
		Users:         &memUsers{b},
		Letters:       &memLetters{b},
		Announcements: &memAnnouncements{b},
	}
}

// memBase 读写入口；事务外的写操作同样要拿 txMu，避免被并发事务的回滚覆盖
type memBase struct {
	s    *MemoryStore
	inTx bool
}

func (b memBase) read(fn func(st *memState) error) error {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return fn(b.s.st)
}

func (b memBase) write(fn func(st *memState, now time.Time) error) error {
	if !b.inTx {
		b.s.txMu.Lock()
		defer b.s.txMu.Unlock()
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return fn(b.s.st, b.s.now())
}

// sortedValues 按 less 排序后返回值列表
func sortedValues[T any](m map[string]memRow[T], keep func(T) bool, less func(a, b memRow[T]) bool) []T {
	rows := make([]memRow[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.v) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

func bySeq[T any](a, b memRow[T]) bool { return a.seq < b.seq }

func bySeqDesc[T any](a, b memRow[T]) bool { return a.seq > b.seq }

package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX *sql.DB 与 *sql.Tx 的公共子集，Postgres 仓库在事务内外共用同一实现
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos 每个实体一个仓库接口；同一个 Repos 内的调用共享同一个事务（如果有）
type Repos struct {
	Residents     ResidentsRepository
	FamilyCards   FamilyCardsRepository
	Memberships   MembershipsRepository
	Births        BirthEventsRepository
	Deaths        DeathEventsRepository
	Arrivals      ArrivalEventsRepository
	Departures    DepartureEventsRepository
	Users         UsersRepository
	Letters       LettersRepository
	Announcements AnnouncementsRepository
}

// Store 存储入口（unit of work）
//   - Repos(): 非事务访问
//   - WithinTx(): fn 返回 error 时回滚 fn 内的全部写入
type Store interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

type rowScanner interface {
	Scan(dest ...any) error
}

// limitOffset size <= 0 表示不分页（返回全部）
func limitOffset(page, size int) string {
	if size <= 0 {
		return ""
	}
	if page <= 0 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
}

// paginate 内存实现使用的分页（语义同 limitOffset）
func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

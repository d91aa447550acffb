package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Schema 返回内置的建表 SQL
func Schema() string { return schemaSQL }

// PostgresStore 基于 database/sql + lib/pq 的 Store 实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func newPostgresRepos(db DBTX) Repos {
	return Repos{
		Residents:     &PostgresResidentsRepository{db: db},
		FamilyCards:   &PostgresFamilyCardsRepository{db: db},
		Memberships:   &PostgresMembershipsRepository{db: db},
		Births:        &PostgresBirthEventsRepository{db: db},
		Deaths:        &PostgresDeathEventsRepository{db: db},
		Arrivals:      &PostgresArrivalEventsRepository{db: db},
		Departures:    &PostgresDepartureEventsRepository{db: db},
		Users:         &PostgresUsersRepository{db: db},
		Letters:       &PostgresLettersRepository{db: db},
		Announcements: &PostgresAnnouncementsRepository{db: db},
	}
}

func (s *PostgresStore) Repos() Repos {
	return newPostgresRepos(s.db)
}

// WithinTx 在一个数据库事务中执行 fn；fn 出错或提交失败时整体回滚
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newPostgresRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPQError(err))
	}
	return nil
}

// Migrate 执行建表 SQL（逐条语句）
func Migrate(ctx context.Context, db *sql.DB, sqlContent string) (int, error) {
	applied := 0
	for _, stmt := range splitStatements(sqlContent) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return applied, fmt.Errorf("statement %d failed: %w", applied+1, err)
		}
		applied++
	}
	return applied, nil
}

// splitStatements 按分号切分，去掉注释行与空语句
func splitStatements(sqlContent string) []string {
	var out []string
	for _, raw := range strings.Split(sqlContent, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

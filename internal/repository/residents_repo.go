package repository

import (
	"context"

	"sipenduk/internal/domain"
)

// ResidentsRepository 居民仓库
type ResidentsRepository interface {
	GetResident(ctx context.Context, residentID string) (*domain.Resident, error)
	GetResidentByNIK(ctx context.Context, nik string) (*domain.Resident, error)
	ListResidents(ctx context.Context, filters ResidentFilters, page, size int) ([]*domain.Resident, int, error)

	// CreateResident 写入 ResidentID（为空时生成）、CreatedAt、UpdatedAt
	CreateResident(ctx context.Context, resident *domain.Resident) error
	// UpdateResident 覆盖身份与地址字段（不含 status）
	UpdateResident(ctx context.Context, resident *domain.Resident) error
	UpdateResidentStatus(ctx context.Context, residentID, status string) error
	DeleteResident(ctx context.Context, residentID string) error
}

// ResidentFilters 居民查询过滤器
type ResidentFilters struct {
	Search string // 姓名或 NIK 模糊匹配
	Status string
	Sex    string
	Hamlet string
}

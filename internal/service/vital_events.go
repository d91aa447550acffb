package service

import (
	"context"
	"errors"
	"fmt"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// 死亡/迁出登记是居民终态的唯一写入者：
//   存在死亡登记 <=> deceased，存在迁出登记 <=> relocated，否则 present。

// applyTerminalStatus 校验居民当前为 present 后置为 status
func applyTerminalStatus(ctx context.Context, r repository.Repos, residentID, status string) (*domain.Resident, error) {
	res, err := r.Residents.GetResident(ctx, residentID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	switch res.Status {
	case domain.ResidentStatusDeceased:
		if status == domain.ResidentStatusDeceased {
			return nil, ErrAlreadyDeceased
		}
		return nil, ErrResidentDeceased
	case domain.ResidentStatusRelocated:
		if status == domain.ResidentStatusRelocated {
			return nil, ErrAlreadyRelocated
		}
		return nil, ErrResidentRelocated
	}
	if err := r.Residents.UpdateResidentStatus(ctx, residentID, status); err != nil {
		return nil, fmt.Errorf("failed to update resident status: %w", mapStoreError(err))
	}
	res.Status = status
	return res, nil
}

// revertTerminalStatus 仅当居民仍为 status 时恢复为 present；居民已不存在时忽略
func revertTerminalStatus(ctx context.Context, r repository.Repos, residentID, status string) (bool, error) {
	res, err := r.Residents.GetResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get resident: %w", err)
	}
	if res.Status != status {
		return false, nil
	}
	if err := r.Residents.UpdateResidentStatus(ctx, residentID, domain.ResidentStatusPresent); err != nil {
		return false, fmt.Errorf("failed to revert resident status: %w", err)
	}
	return true, nil
}

// requireResident 引用的居民必须存在，否则返回字段级校验错误
func requireResident(ctx context.Context, r repository.Repos, field, residentID string) (*domain.Resident, error) {
	res, err := r.Residents.GetResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fieldError(field, "penduduk tidak ditemukan")
		}
		return nil, fmt.Errorf("failed to get resident: %w", err)
	}
	return res, nil
}

// EventPage 事件列表分页参数
type EventPage struct {
	Page int
	Size int
}

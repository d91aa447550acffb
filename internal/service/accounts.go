package service

import (
	"context"
	"errors"
	"fmt"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// provisionGuestAccount 在当前 unit of work 内为居民创建自助账号（users.resident_id 指向该居民）
func provisionGuestAccount(ctx context.Context, r repository.Repos, resident *domain.Resident, username string) (*ProvisionedAccount, error) {
	plain, hash, err := generateCredential()
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		DisplayName:  resident.FullName,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleGuest,
		ResidentID:   resident.ResidentID,
	}
	if err := r.Users.CreateUser(ctx, user); err != nil {
		if mapped := mapStoreError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &ProvisionedAccount{
		UserID:   user.UserID,
		Username: user.Username,
		Password: plain,
		Role:     user.Role,
	}, nil
}

// guestAccountOf 先按 resident_id 查找；旧数据导入的账号没有 resident_id，退回 username=NIK
func guestAccountOf(ctx context.Context, r repository.Repos, residentID, nik string) (*domain.User, error) {
	user, err := r.Users.GetUserByResident(ctx, residentID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if nik == "" {
		return nil, nil
	}
	user, err = r.Users.GetUserByUsername(ctx, nik)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if user.Role != domain.RoleGuest || (user.ResidentID != "" && user.ResidentID != residentID) {
		return nil, nil
	}
	return user, nil
}

// deleteGuestAccount 删除居民的 guest 账号（不存在时忽略）
func deleteGuestAccount(ctx context.Context, r repository.Repos, resident *domain.Resident) (bool, error) {
	user, err := guestAccountOf(ctx, r, resident.ResidentID, resident.NIK)
	if err != nil || user == nil {
		return false, err
	}
	if err := r.Users.DeleteUser(ctx, user.UserID); err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}
	return true, nil
}

// renameGuestAccount 把居民账号改名为 username（密码和角色不变）；oldNIK 用于查找旧数据账号
func renameGuestAccount(ctx context.Context, r repository.Repos, residentID, oldNIK, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	user, err := guestAccountOf(ctx, r, residentID, oldNIK)
	if err != nil || user == nil || user.Username == username {
		return false, err
	}
	user.Username = username
	if err := r.Users.UpdateUser(ctx, user); err != nil {
		if mapped := mapStoreError(err); mapped != err {
			return false, mapped
		}
		return false, fmt.Errorf("failed to rename account: %w", err)
	}
	return true, nil
}

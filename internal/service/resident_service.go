package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// ResidentService 居民生命周期协调器
type ResidentService interface {
	CreateResident(ctx context.Context, req CreateResidentRequest) (*CreateResidentResponse, error)
	GetResident(ctx context.Context, residentID string) (*ResidentItem, error)
	ListResidents(ctx context.Context, req ListResidentsRequest) (*ListResidentsResponse, error)
	UpdateResident(ctx context.Context, residentID string, req UpdateResidentRequest) (*ResidentItem, error)
	DeleteResident(ctx context.Context, residentID string) error
	// ExportResidents 把居民名册写成 XLSX
	ExportResidents(ctx context.Context, req ListResidentsRequest, w io.Writer) error
}

type residentService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewResidentService(store repository.Store, publisher EventPublisher, logger *zap.Logger) ResidentService {
	return &residentService{
		store:     store,
		publisher: publisherOrNop(publisher),
		logger:    logger,
	}
}

// CreateResidentRequest 创建居民请求；CreateAccount=true 时同时开通 guest 账号（username=NIK）
type CreateResidentRequest struct {
	ResidentInput
	CreateAccount bool `json:"create_account"`
}

type CreateResidentResponse struct {
	Resident ResidentItem        `json:"resident"`
	Account  *ProvisionedAccount `json:"account,omitempty"`
}

type UpdateResidentRequest struct {
	ResidentInput
}

type ListResidentsRequest struct {
	Search string
	Status string
	Sex    string
	Hamlet string
	Page   int
	Size   int
}

type ListResidentsResponse struct {
	Items []ResidentItem `json:"items"`
	Total int            `json:"total"`
}

func (s *residentService) CreateResident(ctx context.Context, req CreateResidentRequest) (resp *CreateResidentResponse, err error) {
	defer func() { observe("resident.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	if req.NIK == "" {
		return nil, fieldError("nik", "wajib diisi")
	}

	resident := &domain.Resident{Status: domain.ResidentStatusPresent}
	req.applyTo(resident)

	var account *ProvisionedAccount
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.Residents.GetResidentByNIK(ctx, req.NIK); err == nil {
			return ErrDuplicateNationalID
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check nik: %w", err)
		}
		if err := r.Residents.CreateResident(ctx, resident); err != nil {
			return fmt.Errorf("failed to create resident: %w", mapStoreError(err))
		}
		if req.CreateAccount {
			acc, err := provisionGuestAccount(ctx, r, resident, resident.NIK)
			if err != nil {
				return err
			}
			account = acc
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create resident failed", zap.String("nik", req.NIK), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Resident created",
		zap.String("resident_id", resident.ResidentID),
		zap.Bool("account_created", account != nil),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventResidentCreated, EntityID: resident.ResidentID, ResidentID: resident.ResidentID})
	return &CreateResidentResponse{Resident: toResidentItem(resident), Account: account}, nil
}

func (s *residentService) GetResident(ctx context.Context, residentID string) (*ResidentItem, error) {
	res, err := s.store.Repos().Residents.GetResident(ctx, strings.TrimSpace(residentID))
	if err != nil {
		return nil, mapStoreError(err)
	}
	item := toResidentItem(res)
	return &item, nil
}

func (s *residentService) ListResidents(ctx context.Context, req ListResidentsRequest) (*ListResidentsResponse, error) {
	page, size := normalizePaging(req.Page, req.Size)
	filters := repository.ResidentFilters{
		Search: strings.TrimSpace(req.Search),
		Status: strings.TrimSpace(req.Status),
		Sex:    strings.TrimSpace(req.Sex),
		Hamlet: strings.TrimSpace(req.Hamlet),
	}
	residents, total, err := s.store.Repos().Residents.ListResidents(ctx, filters, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}
	items := make([]ResidentItem, 0, len(residents))
	for _, r := range residents {
		items = append(items, toResidentItem(r))
	}
	return &ListResidentsResponse{Items: items, Total: total}, nil
}

// UpdateResident NIK 变化时同步重命名居民的 guest 账号（密码和角色不变）；已有的 NIK 不能清空
func (s *residentService) UpdateResident(ctx context.Context, residentID string, req UpdateResidentRequest) (item *ResidentItem, err error) {
	defer func() { observe("resident.update", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var updated *domain.Resident
	renamed := false
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Residents.GetResident(ctx, residentID)
		if err != nil {
			return mapStoreError(err)
		}
		oldNIK := current.NIK
		if oldNIK != "" && req.NIK == "" {
			return fieldError("nik", "wajib diisi")
		}
		if req.NIK != "" && req.NIK != oldNIK {
			other, err := r.Residents.GetResidentByNIK(ctx, req.NIK)
			if err == nil && other.ResidentID != current.ResidentID {
				return ErrDuplicateNationalID
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to check nik: %w", err)
			}
		}

		req.applyTo(current)
		if err := r.Residents.UpdateResident(ctx, current); err != nil {
			return fmt.Errorf("failed to update resident: %w", mapStoreError(err))
		}

		if req.NIK != oldNIK {
			ok, err := renameGuestAccount(ctx, r, current.ResidentID, oldNIK, req.NIK)
			if err != nil {
				return err
			}
			renamed = ok
		}
		updated = current
		return nil
	})
	if err != nil {
		s.logger.Warn("Update resident failed", zap.String("resident_id", residentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Resident updated",
		zap.String("resident_id", updated.ResidentID),
		zap.Bool("account_renamed", renamed),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventResidentUpdated, EntityID: updated.ResidentID, ResidentID: updated.ResidentID})
	out := toResidentItem(updated)
	return &out, nil
}

// DeleteResident 仍有家庭成员关系时拒绝；成功时一并删除该居民的 guest 账号
func (s *residentService) DeleteResident(ctx context.Context, residentID string) (err error) {
	defer func() { observe("resident.delete", err) }()

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		resident, err := r.Residents.GetResident(ctx, residentID)
		if err != nil {
			return mapStoreError(err)
		}
		if _, err := r.Memberships.GetMembershipByResident(ctx, residentID); err == nil {
			return ErrResidentHasMembership
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if _, err := deleteGuestAccount(ctx, r, resident); err != nil {
			return err
		}
		if err := r.Residents.DeleteResident(ctx, residentID); err != nil {
			if mapped := mapStoreError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to delete resident: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Delete resident failed", zap.String("resident_id", residentID), zap.Error(err))
		return err
	}

	s.logger.Info("Resident deleted", zap.String("resident_id", residentID))
	s.publisher.Publish(ctx, DomainEvent{Type: EventResidentDeleted, EntityID: residentID, ResidentID: residentID})
	return nil
}

func (s *residentService) ExportResidents(ctx context.Context, req ListResidentsRequest, w io.Writer) error {
	req.Page, req.Size = 1, -1
	list, err := s.ListResidents(ctx, req)
	if err != nil {
		return err
	}
	return writeResidentWorkbook(list.Items, w)
}

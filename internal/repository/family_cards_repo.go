package repository

import (
	"context"

	"sipenduk/internal/domain"
)

// FamilyCardsRepository 家庭卡仓库
type FamilyCardsRepository interface {
	GetFamilyCard(ctx context.Context, familyCardID string) (*domain.FamilyCard, error)
	GetFamilyCardByNumber(ctx context.Context, cardNumber string) (*domain.FamilyCard, error)
	ListFamilyCards(ctx context.Context, search string, page, size int) ([]*domain.FamilyCard, int, error)
	CreateFamilyCard(ctx context.Context, card *domain.FamilyCard) error
	UpdateFamilyCard(ctx context.Context, card *domain.FamilyCard) error
	DeleteFamilyCard(ctx context.Context, familyCardID string) error
}

// MembershipsRepository 家庭成员仓库；列表按插入顺序返回
type MembershipsRepository interface {
	GetMembership(ctx context.Context, membershipID string) (*domain.Membership, error)
	GetMembershipByResident(ctx context.Context, residentID string) (*domain.Membership, error)
	ListMemberships(ctx context.Context, familyCardID string) ([]*domain.Membership, error)
	ListMemberDetails(ctx context.Context, familyCardID string) ([]*domain.MemberDetail, error)
	CountMemberships(ctx context.Context, familyCardID string) (int, error)

	// UpsertMembership 插入成员；居民已有成员行时改为移动该行到新的家庭卡/角色。
	// existed=true 表示复用了已有行（m.MembershipID 被替换为已有行的ID）。
	UpsertMembership(ctx context.Context, m *domain.Membership) (existed bool, err error)
	DeleteMembership(ctx context.Context, membershipID string) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// FamilyCardService 家庭卡与成员协调器
type FamilyCardService interface {
	CreateFamilyCard(ctx context.Context, req CreateFamilyCardRequest) (*CreateFamilyCardResponse, error)
	GetFamilyCard(ctx context.Context, familyCardID string) (*FamilyCardDetail, error)
	ListFamilyCards(ctx context.Context, req ListFamilyCardsRequest) (*ListFamilyCardsResponse, error)
	UpdateFamilyCard(ctx context.Context, familyCardID string, req UpdateFamilyCardRequest) (*FamilyCardItem, error)
	DeleteFamilyCard(ctx context.Context, familyCardID string) error

	// AddMembership 插入成员；居民已属于其他家庭卡时移动过来（不报错）
	AddMembership(ctx context.Context, req AddMembershipRequest) (*AddMembershipResponse, error)
	RemoveMembership(ctx context.Context, membershipID string) error
	ListMembersWithDetail(ctx context.Context, familyCardID string) ([]MemberItem, error)
}

type familyCardService struct {
	store     repository.Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewFamilyCardService(store repository.Store, publisher EventPublisher, logger *zap.Logger) FamilyCardService {
	return &familyCardService{
		store:     store,
		publisher: publisherOrNop(publisher),
		logger:    logger,
	}
}

type FamilyCardItem struct {
	FamilyCardID string    `json:"family_card_id"`
	CardNumber   string    `json:"card_number"`
	HeadName     string    `json:"head_name"`
	Address      string    `json:"address"`
	RT           string    `json:"rt"`
	RW           string    `json:"rw"`
	Hamlet       string    `json:"hamlet"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toFamilyCardItem(c *domain.FamilyCard) FamilyCardItem {
	return FamilyCardItem{
		FamilyCardID: c.FamilyCardID,
		CardNumber:   c.CardNumber,
		HeadName:     c.HeadName,
		Address:      c.Address,
		RT:           c.RT,
		RW:           c.RW,
		Hamlet:       c.Hamlet,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type MembershipItem struct {
	MembershipID string    `json:"membership_id"`
	ResidentID   string    `json:"resident_id"`
	FamilyCardID string    `json:"family_card_id"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toMembershipItem(m *domain.Membership) MembershipItem {
	return MembershipItem{
		MembershipID: m.MembershipID,
		ResidentID:   m.ResidentID,
		FamilyCardID: m.FamilyCardID,
		Relationship: m.Relationship,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// MemberItem 成员 + 居民详情
type MemberItem struct {
	MembershipID string       `json:"membership_id"`
	FamilyCardID string       `json:"family_card_id"`
	Relationship string       `json:"relationship"`
	Resident     ResidentItem `json:"resident"`
}

type FamilyCardDetail struct {
	FamilyCardItem
	Members []MemberItem `json:"members"`
}

// CreateFamilyCardRequest 家庭卡 + 户主信息
type CreateFamilyCardRequest struct {
	CardNumber string `json:"card_number" validate:"required,max=32"`
	Address    string `json:"address"`
	RT         string `json:"rt" validate:"max=5"`
	RW         string `json:"rw" validate:"max=5"`
	Hamlet     string `json:"hamlet" validate:"max=100"`

	HeadName          string `json:"head_name" validate:"required,max=100"`
	HeadNIK           string `json:"head_nik" validate:"omitempty,numeric,len=16"`
	HeadSex           string `json:"head_sex" validate:"required,oneof=male female"`
	HeadBirthPlace    string `json:"head_birth_place" validate:"max=100"`
	HeadBirthDate     string `json:"head_birth_date" validate:"omitempty,date"`
	HeadReligion      string `json:"head_religion" validate:"max=30"`
	HeadMaritalStatus string `json:"head_marital_status" validate:"max=30"`
	HeadOccupation    string `json:"head_occupation" validate:"max=100"`
}

func (req *CreateFamilyCardRequest) normalize() {
	req.CardNumber = strings.TrimSpace(req.CardNumber)
	req.Address = strings.TrimSpace(req.Address)
	req.RT = strings.TrimSpace(req.RT)
	req.RW = strings.TrimSpace(req.RW)
	req.Hamlet = strings.TrimSpace(req.Hamlet)
	req.HeadName = strings.TrimSpace(req.HeadName)
	req.HeadNIK = strings.TrimSpace(req.HeadNIK)
	req.HeadSex = strings.ToLower(strings.TrimSpace(req.HeadSex))
	req.HeadBirthPlace = strings.TrimSpace(req.HeadBirthPlace)
	req.HeadBirthDate = strings.TrimSpace(req.HeadBirthDate)
	req.HeadReligion = strings.TrimSpace(req.HeadReligion)
	req.HeadMaritalStatus = strings.TrimSpace(req.HeadMaritalStatus)
	req.HeadOccupation = strings.TrimSpace(req.HeadOccupation)
}

type CreateFamilyCardResponse struct {
	FamilyCard FamilyCardItem      `json:"family_card"`
	Head       ResidentItem        `json:"head"`
	Membership MembershipItem      `json:"membership"`
	Account    *ProvisionedAccount `json:"account,omitempty"`
}

// CreateFamilyCard 单个 unit of work：家庭卡 -> 户主居民 -> 户主账号 -> 成员关系。
// 任何一步失败整体回滚。
func (s *familyCardService) CreateFamilyCard(ctx context.Context, req CreateFamilyCardRequest) (resp *CreateFamilyCardResponse, err error) {
	defer func() { observe("family_card.create", err) }()

	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	birthDate, _ := parseDate(req.HeadBirthDate)

	card := &domain.FamilyCard{
		CardNumber: req.CardNumber,
		HeadName:   req.HeadName,
		Address:    req.Address,
		RT:         req.RT,
		RW:         req.RW,
		Hamlet:     req.Hamlet,
	}
	head := &domain.Resident{
		NIK:           req.HeadNIK,
		FullName:      req.HeadName,
		BirthPlace:    req.HeadBirthPlace,
		BirthDate:     birthDate,
		Sex:           req.HeadSex,
		Address:       req.Address,
		RT:            req.RT,
		RW:            req.RW,
		Hamlet:        req.Hamlet,
		Religion:      req.HeadReligion,
		MaritalStatus: req.HeadMaritalStatus,
		Occupation:    req.HeadOccupation,
		Status:        domain.ResidentStatusPresent,
	}
	membership := &domain.Membership{Relationship: domain.HeadRelationshipForSex(req.HeadSex)}

	var account *ProvisionedAccount
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.FamilyCards.GetFamilyCardByNumber(ctx, card.CardNumber); err == nil {
			return ErrDuplicateCardNumber
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check card number: %w", err)
		}
		if err := r.FamilyCards.CreateFamilyCard(ctx, card); err != nil {
			return fmt.Errorf("failed to create family card: %w", mapStoreError(err))
		}

		if head.NIK != "" {
			if _, err := r.Residents.GetResidentByNIK(ctx, head.NIK); err == nil {
				return ErrDuplicateNationalID
			} else if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to check nik: %w", err)
			}
		}
		if err := r.Residents.CreateResident(ctx, head); err != nil {
			return fmt.Errorf("failed to create head resident: %w", mapStoreError(err))
		}

		username := head.NIK
		if username == "" {
			username = card.CardNumber
		}
		acc, err := provisionGuestAccount(ctx, r, head, username)
		if err != nil {
			return err
		}
		account = acc

		membership.ResidentID = head.ResidentID
		membership.FamilyCardID = card.FamilyCardID
		if _, err := r.Memberships.UpsertMembership(ctx, membership); err != nil {
			return fmt.Errorf("failed to create head membership: %w", mapStoreError(err))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Create family card failed",
			zap.String("card_number", req.CardNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Family card created",
		zap.String("family_card_id", card.FamilyCardID),
		zap.String("head_resident_id", head.ResidentID),
		zap.String("username", account.Username),
	)
	s.publisher.Publish(ctx, DomainEvent{Type: EventFamilyCardCreated, EntityID: card.FamilyCardID, ResidentID: head.ResidentID})
	return &CreateFamilyCardResponse{
		FamilyCard: toFamilyCardItem(card),
		Head:       toResidentItem(head),
		Membership: toMembershipItem(membership),
		Account:    account,
	}, nil
}

func (s *familyCardService) GetFamilyCard(ctx context.Context, familyCardID string) (*FamilyCardDetail, error) {
	card, err := s.store.Repos().FamilyCards.GetFamilyCard(ctx, familyCardID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	members, err := s.ListMembersWithDetail(ctx, familyCardID)
	if err != nil {
		return nil, err
	}
	return &FamilyCardDetail{FamilyCardItem: toFamilyCardItem(card), Members: members}, nil
}

type ListFamilyCardsRequest struct {
	Search string
	Page   int
	Size   int
}

type ListFamilyCardsResponse struct {
	Items []FamilyCardItem `json:"items"`
	Total int              `json:"total"`
}

func (s *familyCardService) ListFamilyCards(ctx context.Context, req ListFamilyCardsRequest) (*ListFamilyCardsResponse, error) {
	page, size := normalizePaging(req.Page, req.Size)
	cards, total, err := s.store.Repos().FamilyCards.ListFamilyCards(ctx, strings.TrimSpace(req.Search), page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list family cards: %w", err)
	}
	items := make([]FamilyCardItem, 0, len(cards))
	for _, c := range cards {
		items = append(items, toFamilyCardItem(c))
	}
	return &ListFamilyCardsResponse{Items: items, Total: total}, nil
}

type UpdateFamilyCardRequest struct {
	CardNumber string `json:"card_number" validate:"required,max=32"`
	HeadName   string `json:"head_name" validate:"required,max=100"`
	Address    string `json:"address"`
	RT         string `json:"rt" validate:"max=5"`
	RW         string `json:"rw" validate:"max=5"`
	Hamlet     string `json:"hamlet" validate:"max=100"`
}

func (s *familyCardService) UpdateFamilyCard(ctx context.Context, familyCardID string, req UpdateFamilyCardRequest) (item *FamilyCardItem, err error) {
	defer func() { observe("family_card.update", err) }()

	req.CardNumber = strings.TrimSpace(req.CardNumber)
	req.HeadName = strings.TrimSpace(req.HeadName)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var card *domain.FamilyCard
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.FamilyCards.GetFamilyCard(ctx, familyCardID)
		if err != nil {
			return mapStoreError(err)
		}
		if req.CardNumber != current.CardNumber {
			if other, err := r.FamilyCards.GetFamilyCardByNumber(ctx, req.CardNumber); err == nil && other.FamilyCardID != current.FamilyCardID {
				return ErrDuplicateCardNumber
			}
		}
		oldNumber := current.CardNumber
		current.CardNumber = req.CardNumber
		current.HeadName = req.HeadName
		current.Address = strings.TrimSpace(req.Address)
		current.RT = strings.TrimSpace(req.RT)
		current.RW = strings.TrimSpace(req.RW)
		current.Hamlet = strings.TrimSpace(req.Hamlet)
		if err := r.FamilyCards.UpdateFamilyCard(ctx, current); err != nil {
			return fmt.Errorf("failed to update family card: %w", mapStoreError(err))
		}
		if oldNumber != current.CardNumber {
			if err := renameCardNumberAccount(ctx, r, current.FamilyCardID, oldNumber, current.CardNumber); err != nil {
				return err
			}
		}
		card = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := toFamilyCardItem(card)
	return &out, nil
}

// renameCardNumberAccount 无 NIK 的户主账号以 KK 号为 username，KK 号变更时跟随改名
func renameCardNumberAccount(ctx context.Context, r repository.Repos, familyCardID, oldNumber, newNumber string) error {
	user, err := r.Users.GetUserByUsername(ctx, oldNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get account: %w", err)
	}
	if user.Role != domain.RoleGuest || user.ResidentID == "" {
		return nil
	}
	m, err := r.Memberships.GetMembershipByResident(ctx, user.ResidentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get membership: %w", err)
	}
	if m.FamilyCardID != familyCardID {
		return nil
	}
	user.Username = newNumber
	if err := r.Users.UpdateUser(ctx, user); err != nil {
		if mapped := mapStoreError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to rename account: %w", err)
	}
	return nil
}

// DeleteFamilyCard 仍有成员时拒绝
func (s *familyCardService) DeleteFamilyCard(ctx context.Context, familyCardID string) (err error) {
	defer func() { observe("family_card.delete", err) }()

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.FamilyCards.GetFamilyCard(ctx, familyCardID); err != nil {
			return mapStoreError(err)
		}
		n, err := r.Memberships.CountMemberships(ctx, familyCardID)
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if n > 0 {
			return ErrFamilyCardHasMembers
		}
		if err := r.FamilyCards.DeleteFamilyCard(ctx, familyCardID); err != nil {
			if mapped := mapStoreError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to delete family card: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Family card deleted", zap.String("family_card_id", familyCardID))
	return nil
}

type AddMembershipRequest struct {
	FamilyCardID string `json:"family_card_id" validate:"required"`
	ResidentID   string `json:"resident_id" validate:"required"`
	Relationship string `json:"relationship" validate:"required,max=50"`
}

// AddMembershipResponse Moved=true 表示居民原有的成员行被移到了本家庭卡
type AddMembershipResponse struct {
	Membership           MembershipItem `json:"membership"`
	Moved                bool           `json:"moved"`
	PreviousFamilyCardID string         `json:"previous_family_card_id,omitempty"`
}

func (s *familyCardService) AddMembership(ctx context.Context, req AddMembershipRequest) (resp *AddMembershipResponse, err error) {
	defer func() { observe("membership.add", err) }()

	req.FamilyCardID = strings.TrimSpace(req.FamilyCardID)
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.Relationship = strings.TrimSpace(req.Relationship)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	m := &domain.Membership{
		ResidentID:   req.ResidentID,
		FamilyCardID: req.FamilyCardID,
		Relationship: req.Relationship,
	}
	var (
		moved    bool
		previous string
	)
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.FamilyCards.GetFamilyCard(ctx, req.FamilyCardID); err != nil {
			return mapStoreError(err)
		}
		if _, err := r.Residents.GetResident(ctx, req.ResidentID); err != nil {
			return mapStoreError(err)
		}
		if existing, err := r.Memberships.GetMembershipByResident(ctx, req.ResidentID); err == nil {
			previous = existing.FamilyCardID
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get membership: %w", err)
		}
		existed, err := r.Memberships.UpsertMembership(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to upsert membership: %w", mapStoreError(err))
		}
		moved = existed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.logger.Info("Membership moved",
			zap.String("resident_id", m.ResidentID),
			zap.String("from_family_card_id", previous),
			zap.String("to_family_card_id", m.FamilyCardID),
		)
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventMembershipChanged, EntityID: m.MembershipID, ResidentID: m.ResidentID})

	resp = &AddMembershipResponse{Membership: toMembershipItem(m), Moved: moved}
	if moved && previous != m.FamilyCardID {
		resp.PreviousFamilyCardID = previous
	}
	return resp, nil
}

func (s *familyCardService) RemoveMembership(ctx context.Context, membershipID string) (err error) {
	defer func() { observe("membership.remove", err) }()

	m, err := s.store.Repos().Memberships.GetMembership(ctx, membershipID)
	if err != nil {
		return mapStoreError(err)
	}
	if err := s.store.Repos().Memberships.DeleteMembership(ctx, membershipID); err != nil {
		return mapStoreError(err)
	}
	s.publisher.Publish(ctx, DomainEvent{Type: EventMembershipChanged, EntityID: membershipID, ResidentID: m.ResidentID})
	return nil
}

// ListMembersWithDetail 按角色排序：丈夫/户主、妻子、子女，其余在后；同级保持插入顺序
func (s *familyCardService) ListMembersWithDetail(ctx context.Context, familyCardID string) ([]MemberItem, error) {
	repos := s.store.Repos()
	if _, err := repos.FamilyCards.GetFamilyCard(ctx, familyCardID); err != nil {
		return nil, mapStoreError(err)
	}
	details, err := repos.Memberships.ListMemberDetails(ctx, familyCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	sort.SliceStable(details, func(i, j int) bool {
		return domain.RelationshipRank(details[i].Membership.Relationship) < domain.RelationshipRank(details[j].Membership.Relationship)
	})

	items := make([]MemberItem, 0, len(details))
	for _, d := range details {
		items = append(items, MemberItem{
			MembershipID: d.Membership.MembershipID,
			FamilyCardID: d.Membership.FamilyCardID,
			Relationship: d.Membership.Relationship,
			Resident:     toResidentItem(&d.Resident),
		})
	}
	return items, nil
}

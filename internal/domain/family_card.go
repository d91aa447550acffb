package domain

import (
	"strings"
	"time"
)

// FamilyCard 家庭卡（kartu keluarga）
type FamilyCard struct {
	FamilyCardID string `db:"family_card_id"`
	CardNumber   string `db:"card_number"` // UNIQUE
	HeadName     string `db:"head_name"`

	Address string `db:"address"`
	RT      string `db:"rt"`
	RW      string `db:"rw"`
	Hamlet  string `db:"hamlet"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// 家庭关系角色（自由文本，以下为系统内置值）
const (
	RelationshipHusband = "Husband"
	RelationshipWife    = "Wife"
	RelationshipChild   = "Child"
)

// Membership 居民 × 家庭卡 × 关系角色；每个居民最多一行（UNIQUE resident_id）
type Membership struct {
	MembershipID string `db:"membership_id"`
	ResidentID   string `db:"resident_id"`
	FamilyCardID string `db:"family_card_id"`
	Relationship string `db:"relationship"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MemberDetail 成员 + 居民详情（listMembersWithDetail 的返回行）
type MemberDetail struct {
	Membership Membership
	Resident   Resident
}

// RelationshipRank 成员排序：户主(丈夫)=1，妻子=2，子女=3，其他排在最后
func RelationshipRank(relationship string) int {
	switch strings.ToLower(strings.TrimSpace(relationship)) {
	case "husband", "suami", "kepala keluarga":
		return 1
	case "wife", "istri":
		return 2
	case "child", "anak":
		return 3
	default:
		return 4
	}
}

// HeadRelationshipForSex 根据户主性别选择关系角色
func HeadRelationshipForSex(sex string) string {
	if sex == SexFemale {
		return RelationshipWife
	}
	return RelationshipHusband
}

package service

import (
	"strings"
	"time"

	"sipenduk/internal/domain"
)

// ResidentInput 居民身份/地址字段（创建与更新共用）
type ResidentInput struct {
	NIK           string `json:"nik" validate:"omitempty,numeric,len=16"`
	FullName      string `json:"full_name" validate:"required,max=100"`
	BirthPlace    string `json:"birth_place" validate:"max=100"`
	BirthDate     string `json:"birth_date" validate:"omitempty,date"`
	Sex           string `json:"sex" validate:"required,oneof=male female"`
	Address       string `json:"address"`
	RT            string `json:"rt" validate:"max=5"`
	RW            string `json:"rw" validate:"max=5"`
	Hamlet        string `json:"hamlet" validate:"max=100"`
	Religion      string `json:"religion" validate:"max=30"`
	MaritalStatus string `json:"marital_status" validate:"max=30"`
	Occupation    string `json:"occupation" validate:"max=100"`
}

func (in *ResidentInput) normalize() {
	in.NIK = strings.TrimSpace(in.NIK)
	in.FullName = strings.TrimSpace(in.FullName)
	in.BirthPlace = strings.TrimSpace(in.BirthPlace)
	in.BirthDate = strings.TrimSpace(in.BirthDate)
	in.Sex = strings.ToLower(strings.TrimSpace(in.Sex))
	in.Address = strings.TrimSpace(in.Address)
	in.RT = strings.TrimSpace(in.RT)
	in.RW = strings.TrimSpace(in.RW)
	in.Hamlet = strings.TrimSpace(in.Hamlet)
	in.Religion = strings.TrimSpace(in.Religion)
	in.MaritalStatus = strings.TrimSpace(in.MaritalStatus)
	in.Occupation = strings.TrimSpace(in.Occupation)
}

// applyTo 覆盖 resident 的身份字段；调用前已通过校验
func (in *ResidentInput) applyTo(r *domain.Resident) {
	birthDate, _ := parseDate(in.BirthDate)
	r.NIK = in.NIK
	r.FullName = in.FullName
	r.BirthPlace = in.BirthPlace
	r.BirthDate = birthDate
	r.Sex = in.Sex
	r.Address = in.Address
	r.RT = in.RT
	r.RW = in.RW
	r.Hamlet = in.Hamlet
	r.Religion = in.Religion
	r.MaritalStatus = in.MaritalStatus
	r.Occupation = in.Occupation
}

// ResidentItem 居民（前端格式）
type ResidentItem struct {
	ResidentID    string    `json:"resident_id"`
	NIK           string    `json:"nik"`
	FullName      string    `json:"full_name"`
	BirthPlace    string    `json:"birth_place"`
	BirthDate     string    `json:"birth_date"`
	Sex           string    `json:"sex"`
	Address       string    `json:"address"`
	RT            string    `json:"rt"`
	RW            string    `json:"rw"`
	Hamlet        string    `json:"hamlet"`
	Religion      string    `json:"religion"`
	MaritalStatus string    `json:"marital_status"`
	Occupation    string    `json:"occupation"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toResidentItem(r *domain.Resident) ResidentItem {
	return ResidentItem{
		ResidentID:    r.ResidentID,
		NIK:           r.NIK,
		FullName:      r.FullName,
		BirthPlace:    r.BirthPlace,
		BirthDate:     formatDate(r.BirthDate),
		Sex:           r.Sex,
		Address:       r.Address,
		RT:            r.RT,
		RW:            r.RW,
		Hamlet:        r.Hamlet,
		Religion:      r.Religion,
		MaritalStatus: r.MaritalStatus,
		Occupation:    r.Occupation,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ProvisionedAccount 自动创建的账号；Password 只在本次响应中出现
type ProvisionedAccount struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// normalizePaging 默认 page=1, size=20；size<0 表示不分页
func normalizePaging(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size == 0 {
		size = 20
	}
	if size > 500 {
		size = 500
	}
	return page, size
}

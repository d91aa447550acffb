package domain

import "time"

// BirthEvent 出生登记：创建时总会新建一个居民（关系=Child）
type BirthEvent struct {
	BirthEventID string    `db:"birth_event_id"`
	ResidentID   string    `db:"resident_id"` // 新生儿
	FamilyCardID string    `db:"family_card_id"`
	BirthDate    time.Time `db:"birth_date"`
	BirthPlace   string    `db:"birth_place"`
	FatherName   string    `db:"father_name"`
	MotherName   string    `db:"mother_name"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// DeathEvent 死亡登记；存在期间对应居民状态为 deceased
type DeathEvent struct {
	DeathEventID string    `db:"death_event_id"`
	ResidentID   string    `db:"resident_id"` // UNIQUE
	DateOfDeath  time.Time `db:"date_of_death"`
	Cause        string    `db:"cause"`
	Place        string    `db:"place"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ArrivalEvent 迁入登记（可选自动创建居民+账号）
type ArrivalEvent struct {
	ArrivalEventID     string    `db:"arrival_event_id"`
	NIK                string    `db:"nik"`
	FullName           string    `db:"full_name"`
	Sex                string    `db:"sex"`
	ArrivalDate        time.Time `db:"arrival_date"`
	OriginAddress      string    `db:"origin_address"`
	ReporterResidentID string    `db:"reporter_resident_id"` // nullable
	ResidentID         string    `db:"resident_id"`          // nullable，自动创建的居民
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// DepartureEvent 迁出登记；存在期间对应居民状态为 relocated
type DepartureEvent struct {
	DepartureEventID string    `db:"departure_event_id"`
	ResidentID       string    `db:"resident_id"` // UNIQUE
	DepartureDate    time.Time `db:"departure_date"`
	Reason           string    `db:"reason"`
	Destination      string    `db:"destination"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

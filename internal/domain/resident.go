package domain

import "time"

// 居民状态：与当前未关闭的人口事件保持一致
const (
	ResidentStatusPresent   = "present"   // 在籍
	ResidentStatusDeceased  = "deceased"  // 死亡（存在死亡登记）
	ResidentStatusRelocated = "relocated" // 迁出（存在迁出登记）
)

const (
	SexMale   = "male"
	SexFemale = "female"
)

// Resident 居民（penduduk）领域模型（对应 residents 表）
type Resident struct {
	ResidentID string `db:"resident_id"` // UUID, PRIMARY KEY

	// 身份证号（NIK），唯一；新生儿/无证户主允许为空（存储为 NULL）
	NIK string `db:"nik"`

	FullName   string     `db:"full_name"`   // VARCHAR(100), NOT NULL
	BirthPlace string     `db:"birth_place"` // VARCHAR(100), nullable
	BirthDate  *time.Time `db:"birth_date"`  // DATE, nullable
	Sex        string     `db:"sex"`         // male / female

	// 地址
	Address string `db:"address"`
	RT      string `db:"rt"`
	RW      string `db:"rw"`
	Hamlet  string `db:"hamlet"` // dusun

	Religion      string `db:"religion"`
	MaritalStatus string `db:"marital_status"`
	Occupation    string `db:"occupation"`

	// present / deceased / relocated，由人口事件协调器维护
	Status string `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsTerminal 是否处于死亡/迁出状态
func (r *Resident) IsTerminal() bool {
	return r.Status == ResidentStatusDeceased || r.Status == ResidentStatusRelocated
}

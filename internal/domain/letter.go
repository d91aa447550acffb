package domain

import "time"

// 证明信状态：processing -> done | rejected（不可回退）
const (
	LetterStatusProcessing = "processing"
	LetterStatusDone       = "done"
	LetterStatusRejected   = "rejected"
)

// Letter 证明信/文书（surat keterangan）
type Letter struct {
	LetterID     string `db:"letter_id"`
	LetterType   string `db:"letter_type"`
	ResidentID   string `db:"resident_id"` // 申请人
	SerialNumber string `db:"serial_number"`
	Purpose      string `db:"purpose"`
	Notes        string `db:"notes"`
	Status       string `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

package domain

import "time"

// Announcement 公告（pengumuman）
type Announcement struct {
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	Title          string    `db:"title" json:"title"`
	Body           string    `db:"body" json:"body"`
	Author         string    `db:"author" json:"author"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

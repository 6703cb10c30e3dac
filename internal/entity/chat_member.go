package entity

import (
	"database/sql"
	"time"
)

// ChatMember is the read cursor of a user in a room.
type ChatMember struct {
	UserID string `gorm:"primaryKey"`
	RoomID int64  `gorm:"primaryKey;index"`

	LastViewedMessageID sql.NullInt64
	LastActiveAt        time.Time
}

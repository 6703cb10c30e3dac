package entity

import "time"

// ChatMessage is never updated once written. Messages of a room are ordered by
// CreatedAt first, then by ID.
type ChatMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" db:"id"`
	RoomID    int64     `gorm:"index:idx_chat_messages_room_id_created_at,priority:1" db:"room_id"`
	Bucket    int64     `gorm:"-" db:"bucket"`
	UserID    string    `db:"user_id"`
	Content   string    `gorm:"type:text" db:"content"`
	File      string    `db:"file"`
	CreatedAt time.Time `gorm:"index:idx_chat_messages_room_id_created_at,priority:2" db:"created_at"`
}

func (t *ChatMessage) TableName() string {
	return "chat_messages"
}

package model

import (
	"database/sql"
	"time"

	"github.com/questx-lab/coursechat/internal/entity"
)

func ConvertChatRoom(room *entity.ChatRoom, course *entity.Course) ChatRoom {
	r := ChatRoom{
		ID:       room.ID,
		Name:     room.Name,
		CourseID: room.CourseID,
	}

	if course != nil {
		r.CourseName = course.Name
	}

	return r
}

func ConvertChatMessage(msg *entity.ChatMessage, author *entity.User) ChatMessage {
	m := ChatMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		File:      msg.File,
		Timestamp: msg.CreatedAt.UTC(),
	}

	if author != nil {
		m.Username = author.Username
		m.FullName = author.FullName()
	}

	return m
}

func ConvertNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	return &v.Int64
}

func ConvertTimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

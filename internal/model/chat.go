package model

import "time"

type ChatRoom struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name,omitempty"`
}

// ChatMessage is the author-enriched view of a message, sent to clients as is.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	File      string    `json:"file,omitempty"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatParticipant struct {
	UserID       string     `json:"user_id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	IsInstructor bool       `json:"is_instructor"`
	Online       bool       `json:"online"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

type ChatMessageGroup struct {
	Date     string        `json:"date"`
	Messages []ChatMessage `json:"messages"`
}

type SubmitMessageRequest struct {
	RoomID  int64  `json:"chat_room"`
	Content string `json:"content"`
	File    string `json:"file"`
}

type CreateChatRoomRequest struct {
	CourseID string `json:"course_id"`
}

type CreateChatRoomResponse struct {
	ChatRoom ChatRoom `json:"chat_room"`
}

type GetMyChatRoomsRequest struct{}

type GetMyChatRoomsResponse struct {
	ChatRooms []ChatRoom `json:"chat_rooms"`
}

type GetChatRoomRequest struct {
	RoomName string `json:"room_name" mapstructure:"room_name"`
}

type GetChatRoomResponse struct {
	ChatRoom          ChatRoom          `json:"chat_room"`
	Participants      []ChatParticipant `json:"participants"`
	LastViewedMessage *int64            `json:"last_viewed_message"`
}

type GetChatMessagesRequest struct {
	RoomName string `json:"room_name" mapstructure:"room_name"`
	Before   int64  `json:"before" mapstructure:"before"`
	Limit    int    `json:"limit" mapstructure:"limit"`
}

type GetChatMessagesResponse struct {
	Groups []ChatMessageGroup `json:"groups"`
}

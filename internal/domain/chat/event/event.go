package event

import (
	"encoding/json"

	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/pkg/errorx"
)

const (
	TypeUserData = "chat.user_data"
	TypeMessage  = "chat.message"
	TypeError    = "chat.error"

	ActionUserConnected     = "user_connected"
	ActionUserDisconnected  = "user_disconnected"
	ActionLastViewedMessage = "user_last_viewed_message"
	ActionSendMessage       = "send_message"
	ActionError             = "error"
)

// Event is a frame sent to clients. Every event is encoded with its type and
// action next to its own fields.
type Event interface {
	Type() string
	Action() string
	isEvent()
}

type header struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func headerOf(e Event) header {
	return header{Type: e.Type(), Action: e.Action()}
}

// UsersConnected carries the usernames currently online in the room.
type UsersConnected struct {
	Users []string
}

func (*UsersConnected) Type() string   { return TypeUserData }
func (*UsersConnected) Action() string { return ActionUserConnected }
func (*UsersConnected) isEvent()       {}

func (e *UsersConnected) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		header
		Users []string `json:"users"`
	}{headerOf(e), nonNil(e.Users)})
}

type UserDisconnected struct {
	Users []string
}

func (*UserDisconnected) Type() string   { return TypeUserData }
func (*UserDisconnected) Action() string { return ActionUserDisconnected }
func (*UserDisconnected) isEvent()       {}

func (e *UserDisconnected) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		header
		Users []string `json:"users"`
	}{headerOf(e), nonNil(e.Users)})
}

type LastViewedMessage struct {
	MessageID *int64
}

func (*LastViewedMessage) Type() string   { return TypeUserData }
func (*LastViewedMessage) Action() string { return ActionLastViewedMessage }
func (*LastViewedMessage) isEvent()       {}

func (e *LastViewedMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		header
		LastViewedMessage *int64 `json:"last_viewed_message"`
	}{headerOf(e), e.MessageID})
}

type MessageCreated struct {
	Message model.ChatMessage
}

func (*MessageCreated) Type() string   { return TypeMessage }
func (*MessageCreated) Action() string { return ActionSendMessage }
func (*MessageCreated) isEvent()       {}

func (e *MessageCreated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		header
		Message model.ChatMessage `json:"message"`
	}{headerOf(e), e.Message})
}

// Error is only sent to the connection whose frame failed.
type Error struct {
	Code    errorx.Code
	Message string
}

func NewError(err error) *Error {
	if code := errorx.CodeOf(err); code != errorx.Unknown.Code {
		return &Error{Code: code, Message: err.Error()}
	}

	return &Error{Code: errorx.Unknown.Code, Message: errorx.Unknown.Message}
}

func (*Error) Type() string   { return TypeError }
func (*Error) Action() string { return ActionError }
func (*Error) isEvent()       {}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		header
		Code    errorx.Code `json:"code"`
		Message string      `json:"message"`
	}{headerOf(e), e.Code, e.Message})
}

func nonNil(users []string) []string {
	if users == nil {
		return []string{}
	}
	return users
}

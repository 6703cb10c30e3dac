package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed frame")

// Action is a frame sent by a client. The set of actions is closed: only the
// types of this package implement it.
type Action interface {
	RoomID() int64
	isAction()
}

const (
	actionGetUserData     = "get_user_data"
	actionCloseConnection = "close_user_connection"
)

type GetUserData struct {
	ChatRoomID int64 `json:"chat_room_id"`
}

func (a *GetUserData) RoomID() int64 { return a.ChatRoomID }
func (*GetUserData) isAction()       {}

type CloseConnection struct {
	ChatRoomID        int64 `json:"chat_room_id"`
	LastViewedMessage int64 `json:"last_viewed_message"`
}

func (a *CloseConnection) RoomID() int64 { return a.ChatRoomID }
func (*CloseConnection) isAction()       {}

type MessageInput struct {
	ChatRoom int64  `json:"chat_room"`
	Content  string `json:"content"`
	File     string `json:"file"`
}

type SubmitMessage struct {
	Message MessageInput `json:"message"`
}

func (a *SubmitMessage) RoomID() int64 { return a.Message.ChatRoom }
func (*SubmitMessage) isAction()       {}

// ParseAction decodes a client frame. A frame with an "action" field must name
// a known action; a frame without one is a message submission and must carry
// a "message" object.
func ParseAction(data []byte) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawAction, ok := fields["action"]
	if !ok {
		if _, ok := fields["message"]; !ok {
			return nil, fmt.Errorf("%w: missing message", ErrMalformed)
		}

		return decode(data, &SubmitMessage{})
	}

	var name string
	if err := json.Unmarshal(rawAction, &name); err != nil {
		return nil, fmt.Errorf("%w: invalid action: %v", ErrMalformed, err)
	}

	switch name {
	case actionGetUserData:
		return decode(data, &GetUserData{})
	case actionCloseConnection:
		return decode(data, &CloseConnection{})
	}

	return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, name)
}

func decode[T Action](data []byte, action T) (Action, error) {
	if err := json.Unmarshal(data, action); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return action, nil
}

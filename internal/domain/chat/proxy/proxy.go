package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain"
	"github.com/questx-lab/coursechat/internal/domain/chat/event"
	"github.com/questx-lab/coursechat/internal/domain/chat/hub"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/ws"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

// Close codes sent to rejected connections.
const (
	CloseUnauthorized    = 4001
	CloseUnauthenticated = 4003
	CloseRoomNotFound    = 4004
)

type ChatProxy interface {
	ServeChat(ctx context.Context, client *ws.Client, roomName string) error
	ServeRoom(ctx context.Context, client *ws.Client) error
}

type chatProxy struct {
	userRepo     repository.UserRepository
	roomVerifier *common.RoomVerifier
	presence     presence.Registry
	broadcaster  hub.Broadcaster
	messages     domain.ChatMessageDomain
	readCursor   domain.ReadCursorDomain
}

func NewChatProxy(
	userRepo repository.UserRepository,
	roomVerifier *common.RoomVerifier,
	presence presence.Registry,
	broadcaster hub.Broadcaster,
	messages domain.ChatMessageDomain,
	readCursor domain.ReadCursorDomain,
) *chatProxy {
	return &chatProxy{
		userRepo:     userRepo,
		roomVerifier: roomVerifier,
		presence:     presence,
		broadcaster:  broadcaster,
		messages:     messages,
		readCursor:   readCursor,
	}
}

// connection is the state of one joined client.
type connection struct {
	client  *ws.Client
	user    *entity.User
	room    *entity.ChatRoom
	roomKey string
	session *hub.Session

	// joined is set once the connection is counted in the presence.
	joined bool

	// flushed is set once the client reported its read cursor on close.
	flushed bool
}

func (p *chatProxy) ServeChat(ctx context.Context, client *ws.Client, roomName string) error {
	room, _, err := p.roomVerifier.Authorize(ctx, roomName)
	if err != nil {
		code, reason := rejection(err)
		xcontext.Logger(ctx).Debugf("Reject connection to room %s: %v", roomName, err)
		common.PromCounters[common.ChatRejectedTotal].WithLabelValues(strconv.Itoa(code)).Inc()
		client.Close(code, reason)
		return nil
	}

	user, err := p.userRepo.GetByID(ctx, xcontext.RequestUserID(ctx))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get user: %v", err)
		client.Close(websocket.CloseInternalServerErr, "Cannot get user")
		return errorx.Unknown
	}

	conn := &connection{
		client:  client,
		user:    user,
		room:    room,
		roomKey: domain.RoomKey(room.ID),
		session: hub.NewSession(user.ID, xcontext.Configs(ctx).Chat.SessionBufferSize),
	}

	if err := p.join(ctx, conn); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot join room %s: %v", conn.roomKey, err)
		p.leave(ctx, conn)
		client.Close(websocket.CloseInternalServerErr, "Cannot join room")
		return errorx.Unknown
	}
	defer p.leave(ctx, conn)

	active := common.PromGauges[common.ChatConnectionActive].WithLabelValues()
	active.Inc()
	defer active.Dec()

	xcontext.Logger(ctx).Infof("User %s joined room %s", user.Username, room.Name)

	// Room events are drained apart from the frames of the client, so a slow
	// store write in handle does not fill the session buffer.
	stop := make(chan struct{})
	defer close(stop)
	go p.forward(conn, stop)

	for {
		select {
		case msg, ok := <-client.R:
			if !ok {
				return nil
			}

			p.handle(ctx, conn, msg)

		case <-conn.session.Kicked():
			client.Close(websocket.CloseTryAgainLater, "Too slow")
			return nil

		case <-ctx.Done():
			client.Close(websocket.CloseGoingAway, "Server is shutting down")
			return nil
		}
	}
}

// ServeRoom serves the room named by the "room_name" path value.
func (p *chatProxy) ServeRoom(ctx context.Context, client *ws.Client) error {
	return p.ServeChat(ctx, client, xcontext.HTTPRequest(ctx).PathValue("room_name"))
}

// forward writes the room events of the session to the client until stop is
// closed or the client is gone.
func (p *chatProxy) forward(conn *connection, stop <-chan struct{}) {
	for {
		select {
		case msg := <-conn.session.C:
			if err := conn.client.Write(msg); err != nil {
				return
			}

		case <-conn.client.Done():
			return

		case <-stop:
			return
		}
	}
}

func (p *chatProxy) join(ctx context.Context, conn *connection) error {
	if err := p.presence.Join(ctx, conn.user.ID, conn.roomKey); err != nil {
		return err
	}
	conn.joined = true

	if err := p.broadcaster.Subscribe(ctx, conn.roomKey, conn.session); err != nil {
		return err
	}

	return p.publishRoster(ctx, conn)
}

// leave runs every cleanup step even if one of them fails. The departure is
// announced after the presence and the cursor are updated, and only if this
// was the last connection of the user in the room.
func (p *chatProxy) leave(ctx context.Context, conn *connection) {
	// The request context may already be canceled, cleanup must still reach
	// the stores.
	ctx = context.WithoutCancel(ctx)

	offline := false
	if conn.joined {
		var err error
		offline, err = p.presence.Leave(ctx, conn.user.ID, conn.roomKey)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot leave presence: %v", err)
		}
	}

	if !conn.flushed {
		if err := p.readCursor.Touch(ctx, conn.room.ID); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot flush read cursor: %v", err)
		}
	}

	if offline {
		err := p.broadcaster.Publish(ctx, conn.roomKey, &event.UserDisconnected{Users: []string{conn.user.Username}})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot publish user disconnected: %v", err)
		}
	}

	if err := p.broadcaster.Unsubscribe(ctx, conn.roomKey, conn.session); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot unsubscribe: %v", err)
	}

	xcontext.Logger(ctx).Infof("User %s left room %s", conn.user.Username, conn.room.Name)
}

func (p *chatProxy) handle(ctx context.Context, conn *connection, msg []byte) {
	action, err := event.ParseAction(msg)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Drop frame of user %s: %v", conn.user.Username, err)
		return
	}

	if action.RoomID() != conn.room.ID {
		p.reply(ctx, conn, event.NewError(errorx.New(errorx.BadRequest, "Chat room does not match the connection")))
		return
	}

	switch a := action.(type) {
	case *event.GetUserData:
		err = p.getUserData(ctx, conn)
	case *event.CloseConnection:
		err = p.closeConnection(ctx, conn, a)
	case *event.SubmitMessage:
		err = p.submitMessage(ctx, conn, a)
	}

	if err != nil {
		p.reply(ctx, conn, event.NewError(err))
	}
}

func (p *chatProxy) getUserData(ctx context.Context, conn *connection) error {
	if err := p.publishRoster(ctx, conn); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish roster: %v", err)
		return errorx.Unknown
	}

	lastViewed, err := p.readCursor.GetLastViewed(ctx, conn.room.ID)
	if err != nil {
		return err
	}

	p.reply(ctx, conn, &event.LastViewedMessage{MessageID: lastViewed})
	return nil
}

func (p *chatProxy) closeConnection(ctx context.Context, conn *connection, a *event.CloseConnection) error {
	if err := p.readCursor.MarkViewed(ctx, conn.room.ID, a.LastViewedMessage); err != nil {
		return err
	}

	conn.flushed = true
	return nil
}

func (p *chatProxy) submitMessage(ctx context.Context, conn *connection, a *event.SubmitMessage) error {
	msg, err := p.messages.Submit(ctx, conn.room.ID, &model.SubmitMessageRequest{
		RoomID:  a.Message.ChatRoom,
		Content: a.Message.Content,
		File:    a.Message.File,
	})
	if err != nil {
		common.PromCounters[common.ChatMessageTotal].WithLabelValues("rejected").Inc()
		return err
	}
	common.PromCounters[common.ChatMessageTotal].WithLabelValues("accepted").Inc()

	if err := p.broadcaster.Publish(ctx, conn.roomKey, &event.MessageCreated{Message: *msg}); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish message %d: %v", msg.ID, err)
		return errorx.Unknown
	}

	return nil
}

func (p *chatProxy) publishRoster(ctx context.Context, conn *connection) error {
	userIDs, err := p.presence.ListOnline(ctx, conn.roomKey)
	if err != nil {
		return err
	}

	users, err := p.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return err
	}

	usernames := []string{}
	for _, u := range users {
		usernames = append(usernames, u.Username)
	}

	return p.broadcaster.Publish(ctx, conn.roomKey, &event.UsersConnected{Users: usernames})
}

// reply sends ev to this connection only.
func (p *chatProxy) reply(ctx context.Context, conn *connection, ev event.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal %s event: %v", ev.Action(), err)
		return
	}

	if err := conn.client.Write(msg); err != nil {
		xcontext.Logger(ctx).Debugf("Cannot reply to user %s: %v", conn.user.Username, err)
	}
}

func rejection(err error) (int, string) {
	var errx errorx.Error
	if !errors.As(err, &errx) {
		return websocket.CloseInternalServerErr, errorx.Unknown.Message
	}

	switch errx.Code {
	case errorx.Unauthenticated:
		return CloseUnauthenticated, errx.Message
	case errorx.RoomNotFound:
		return CloseRoomNotFound, errx.Message
	case errorx.Forbidden:
		return CloseUnauthorized, errx.Message
	}

	return websocket.CloseInternalServerErr, errorx.Unknown.Message
}

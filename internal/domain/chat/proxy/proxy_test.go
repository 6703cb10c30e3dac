package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain"
	"github.com/questx-lab/coursechat/internal/domain/chat/event"
	"github.com/questx-lab/coursechat/internal/domain/chat/hub"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/middleware"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/router"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	ctx         context.Context
	url         string
	presence    presence.Registry
	broadcaster hub.Broadcaster
	readCursor  domain.ReadCursorDomain
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithMessages(t, nil)
}

// newTestServerWithMessages serves the chat with the given message domain, or
// the real one if messages is nil.
func newTestServerWithMessages(t *testing.T, messages domain.ChatMessageDomain) *testServer {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)

	userRepo := repository.NewUserRepository()
	chatRoomRepo := repository.NewChatRoomRepository()
	chatMessageRepo := repository.NewChatMessageRepository()
	roomVerifier := common.NewRoomVerifier(
		chatRoomRepo, repository.NewCourseRepository(), repository.NewEnrollmentRepository())

	if messages == nil {
		messages = domain.NewChatMessageDomain(chatRoomRepo, chatMessageRepo, userRepo, roomVerifier, nil)
	}

	registry := presence.NewMemoryRegistry()
	broadcaster := hub.NewLocalBroadcaster(hub.NewRouter(xcontext.Configs(ctx).Chat.HubBufferSize))
	readCursor := domain.NewReadCursorDomain(repository.NewChatMemberRepository(), chatMessageRepo)
	chatProxy := NewChatProxy(userRepo, roomVerifier, registry, broadcaster, messages, readCursor)

	r := router.New(ctx)
	r.Before(middleware.NewAuthVerifier().WithAccessToken().WithOptional().Middleware())
	router.Websocket(r, "/chat/{room_name}", chatProxy.ServeRoom)

	srv := httptest.NewServer(r.Handler(xcontext.Configs(ctx).Server))
	t.Cleanup(srv.Close)

	return &testServer{
		ctx:         ctx,
		url:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		presence:    registry,
		broadcaster: broadcaster,
		readCursor:  readCursor,
	}
}

func (s *testServer) dial(t *testing.T, user *entity.User, roomName string) *websocket.Conn {
	url := s.url + "/chat/" + roomName
	if user != nil {
		token, err := xcontext.TokenEngine(s.ctx).Generate(
			user.ID, model.AccessToken{ID: user.ID, Username: user.Username})
		require.NoError(t, err)
		url += "?access_token=" + token
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

type frame struct {
	Type              string          `json:"type"`
	Action            string          `json:"action"`
	Users             []string        `json:"users"`
	LastViewedMessage *int64          `json:"last_viewed_message"`
	Message           json.RawMessage `json:"message"`
	Code              errorx.Code     `json:"code"`
}

func (f *frame) chatMessage(t *testing.T) model.ChatMessage {
	var msg model.ChatMessage
	require.NoError(t, json.Unmarshal(f.Message, &msg))
	return msg
}

func readFrame(t *testing.T, conn *websocket.Conn) *frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return &f
}

// readUntil skips frames until one with the given action arrives.
func readUntil(t *testing.T, conn *websocket.Conn, action string) *frame {
	for {
		if f := readFrame(t, conn); f.Action == action {
			return f
		}
	}
}

// readActions reads frames until every given action arrived and returns the
// last frame of each. The order between them is not guaranteed.
func readActions(t *testing.T, conn *websocket.Conn, actions ...string) map[string]*frame {
	got := map[string]*frame{}
	for len(got) < len(actions) {
		f := readFrame(t, conn)
		for _, a := range actions {
			if f.Action == a {
				got[a] = f
			}
		}
	}

	return got
}

// readNonRoster skips the roster broadcasts which arrive at any time.
func readNonRoster(t *testing.T, conn *websocket.Conn) *frame {
	for {
		if f := readFrame(t, conn); f.Type != event.TypeUserData || f.Action == event.ActionLastViewedMessage {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	require.NoError(t, conn.WriteJSON(v))
}

func sendMessage(t *testing.T, conn *websocket.Conn, content string) {
	send(t, conn, map[string]any{
		"message": map[string]any{"chat_room": testutil.Room1.ID, "content": content},
	})
}

func requireCloseCode(t *testing.T, conn *websocket.Conn, code int) {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, code), "unexpected error %v", err)
}

func Test_chatProxy_TwoParticipants(t *testing.T) {
	s := newTestServer(t)

	alice := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	f := readUntil(t, alice, event.ActionUserConnected)
	require.Contains(t, f.Users, testutil.Student1.Username)

	carol := s.dial(t, &testutil.Instructor1, testutil.Room1.Name)
	for {
		f = readUntil(t, alice, event.ActionUserConnected)
		if len(f.Users) == 2 {
			break
		}
	}
	require.ElementsMatch(t, []string{testutil.Student1.Username, testutil.Instructor1.Username}, f.Users)

	sendMessage(t, alice, "hello")

	var sent model.ChatMessage
	for _, conn := range []*websocket.Conn{alice, carol} {
		f := readNonRoster(t, conn)
		require.Equal(t, event.TypeMessage, f.Type)
		require.Equal(t, event.ActionSendMessage, f.Action)

		msg := f.chatMessage(t)
		require.Equal(t, "hello", msg.Content)
		require.Equal(t, testutil.Student1.Username, msg.Username)
		require.NotZero(t, msg.ID)
		require.False(t, msg.Timestamp.IsZero())
		sent = msg
	}

	send(t, alice, map[string]any{
		"action":              "close_user_connection",
		"chat_room_id":        testutil.Room1.ID,
		"last_viewed_message": sent.ID,
	})
	require.NoError(t, alice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	alice.Close()

	f = readUntil(t, carol, event.ActionUserDisconnected)
	require.Equal(t, []string{testutil.Student1.Username}, f.Users)

	send(t, carol, map[string]any{"action": "get_user_data", "chat_room_id": testutil.Room1.ID})
	frames := readActions(t, carol, event.ActionUserConnected, event.ActionLastViewedMessage)
	require.Equal(t, []string{testutil.Instructor1.Username}, frames[event.ActionUserConnected].Users)
	require.Nil(t, frames[event.ActionLastViewedMessage].LastViewedMessage)

	aliceCtx := testutil.MockContextWithUserID(s.ctx, testutil.Student1.ID)
	lastViewed, err := s.readCursor.GetLastViewed(aliceCtx, testutil.Room1.ID)
	require.NoError(t, err)
	require.NotNil(t, lastViewed)
	require.Equal(t, sent.ID, *lastViewed)
}

func Test_chatProxy_MessagesKeepOrder(t *testing.T) {
	s := newTestServer(t)

	alice := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	bob := s.dial(t, &testutil.Student2, testutil.Room1.Name)

	// Wait until bob is subscribed, otherwise he may miss the first messages.
	for {
		if f := readUntil(t, alice, event.ActionUserConnected); len(f.Users) == 2 {
			break
		}
	}

	contents := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, c := range contents {
		sendMessage(t, alice, c)
	}

	var lastID int64
	for _, want := range contents {
		msg := readNonRoster(t, bob).chatMessage(t)
		require.Equal(t, want, msg.Content)
		require.Greater(t, msg.ID, lastID)
		lastID = msg.ID
	}
}

func Test_chatProxy_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		user     *entity.User
		roomName string
		code     int
	}{
		{
			name:     "anonymous",
			roomName: testutil.Room1.Name,
			code:     CloseUnauthenticated,
		},
		{
			name:     "unknown room",
			user:     &testutil.Student1,
			roomName: "unknown-room",
			code:     CloseRoomNotFound,
		},
		{
			name:     "not a participant",
			user:     &testutil.Outsider,
			roomName: testutil.Room1.Name,
			code:     CloseUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rejected := common.PromCounters[common.ChatRejectedTotal].WithLabelValues(strconv.Itoa(tt.code))
			before := promtestutil.ToFloat64(rejected)

			conn := s.dial(t, tt.user, tt.roomName)
			requireCloseCode(t, conn, tt.code)
			require.Equal(t, before+1, promtestutil.ToFloat64(rejected))

			online, err := s.presence.ListOnline(s.ctx, domain.RoomKey(testutil.Room1.ID))
			require.NoError(t, err)
			require.Empty(t, online)
		})
	}
}

func Test_chatProxy_InvalidFrames(t *testing.T) {
	s := newTestServer(t)

	alice := s.dial(t, &testutil.Student1, testutil.Room1.Name)

	sendMessage(t, alice, strings.Repeat("x", 21))
	f := readNonRoster(t, alice)
	require.Equal(t, event.TypeError, f.Type)
	require.Equal(t, errorx.BadRequest, f.Code)

	send(t, alice, map[string]any{"action": "get_user_data", "chat_room_id": testutil.Room1.ID + 1})
	f = readNonRoster(t, alice)
	require.Equal(t, event.TypeError, f.Type)
	require.Equal(t, errorx.BadRequest, f.Code)

	// Malformed frames are dropped without any reply.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, alice, map[string]any{"action": "dance", "chat_room_id": testutil.Room1.ID})

	sendMessage(t, alice, "still here")
	f = readNonRoster(t, alice)
	require.Equal(t, event.TypeMessage, f.Type)
	require.Equal(t, "still here", f.chatMessage(t).Content)
}

func Test_chatProxy_CursorFlushedOnDisconnect(t *testing.T) {
	s := newTestServer(t)

	alice := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	carol := s.dial(t, &testutil.Instructor1, testutil.Room1.Name)
	readUntil(t, carol, event.ActionUserConnected)

	alice.Close()
	readUntil(t, carol, event.ActionUserDisconnected)

	online, err := s.presence.ListOnline(s.ctx, domain.RoomKey(testutil.Room1.ID))
	require.NoError(t, err)
	require.Equal(t, []string{testutil.Instructor1.ID}, online)

	members, err := repository.NewChatMemberRepository().GetListByRoomID(s.ctx, testutil.Room1.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, testutil.Student1.ID, members[0].UserID)
	require.False(t, members[0].LastViewedMessageID.Valid)
	require.False(t, members[0].LastActiveAt.IsZero())
}

func Test_chatProxy_SecondConnectionOfUser(t *testing.T) {
	s := newTestServer(t)

	alice1 := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	readUntil(t, alice1, event.ActionUserConnected)
	alice2 := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	readUntil(t, alice2, event.ActionUserConnected)
	carol := s.dial(t, &testutil.Instructor1, testutil.Room1.Name)
	readUntil(t, carol, event.ActionUserConnected)

	require.NoError(t, alice2.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	alice2.Close()

	// The cursor of the closed connection is touched while leaving.
	memberRepo := repository.NewChatMemberRepository()
	require.Eventually(t, func() bool {
		members, err := memberRepo.GetListByRoomID(s.ctx, testutil.Room1.ID)
		return err == nil && len(members) == 1
	}, 2*time.Second, 10*time.Millisecond)

	online, err := s.presence.ListOnline(s.ctx, domain.RoomKey(testutil.Room1.ID))
	require.NoError(t, err)
	require.Equal(t, []string{testutil.Instructor1.ID, testutil.Student1.ID}, online)

	// alice is still online, nothing is announced before her next message.
	sendMessage(t, alice1, "still here")
	for {
		f := readFrame(t, carol)
		require.NotEqual(t, event.ActionUserDisconnected, f.Action)
		if f.Type == event.TypeMessage {
			require.Equal(t, "still here", f.chatMessage(t).Content)
			break
		}
	}

	alice1.Close()
	f := readUntil(t, carol, event.ActionUserDisconnected)
	require.Equal(t, []string{testutil.Student1.Username}, f.Users)

	online, err = s.presence.ListOnline(s.ctx, domain.RoomKey(testutil.Room1.ID))
	require.NoError(t, err)
	require.Equal(t, []string{testutil.Instructor1.ID}, online)
}

type failingLeaveRegistry struct {
	presence.Registry
}

func (failingLeaveRegistry) Leave(context.Context, string, string) (bool, error) {
	return false, errors.New("presence is down")
}

func Test_chatProxy_leave(t *testing.T) {
	tests := []struct {
		name     string
		registry func() presence.Registry
		joined   bool
		announce bool
	}{
		{
			name:     "last connection",
			registry: func() presence.Registry { return presence.NewMemoryRegistry() },
			joined:   true,
			announce: true,
		},
		{
			name:     "not joined",
			registry: func() presence.Registry { return presence.NewMemoryRegistry() },
		},
		{
			name:     "presence error",
			registry: func() presence.Registry { return failingLeaveRegistry{presence.NewMemoryRegistry()} },
			joined:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.MockContext()
			testutil.CreateFixtureDb(ctx)
			ctx = testutil.MockContextWithUserID(ctx, testutil.Student1.ID)
			cfg := xcontext.Configs(ctx).Chat

			chatMessageRepo := repository.NewChatMessageRepository()
			registry := tt.registry()
			broadcaster := hub.NewLocalBroadcaster(hub.NewRouter(cfg.HubBufferSize))
			p := NewChatProxy(
				repository.NewUserRepository(),
				nil,
				registry,
				broadcaster,
				nil,
				domain.NewReadCursorDomain(repository.NewChatMemberRepository(), chatMessageRepo),
			)

			roomKey := domain.RoomKey(testutil.Room1.ID)
			conn := &connection{
				user:    &testutil.Student1,
				room:    &testutil.Room1,
				roomKey: roomKey,
				session: hub.NewSession(testutil.Student1.ID, cfg.SessionBufferSize),
			}
			if tt.joined {
				require.NoError(t, registry.Join(ctx, testutil.Student1.ID, roomKey))
				conn.joined = true
			}
			require.NoError(t, broadcaster.Subscribe(ctx, roomKey, conn.session))

			observer := hub.NewSession(testutil.Instructor1.ID, cfg.SessionBufferSize)
			require.NoError(t, broadcaster.Subscribe(ctx, roomKey, observer))

			p.leave(ctx, conn)

			// Room events keep their order, so anything published by leave
			// arrives before this marker.
			marker := &event.UsersConnected{Users: []string{"marker"}}
			require.NoError(t, broadcaster.Publish(ctx, roomKey, marker))

			var got []string
			for {
				var f frame
				select {
				case msg := <-observer.C:
					require.NoError(t, json.Unmarshal(msg, &f))
				case <-time.After(2 * time.Second):
					t.Fatal("timeout waiting for room events")
				}

				if f.Action == event.ActionUserConnected {
					break
				}
				got = append(got, f.Action)
			}

			if tt.announce {
				require.Equal(t, []string{event.ActionUserDisconnected}, got)
			} else {
				require.Empty(t, got)
			}
		})
	}
}

// slowMessages holds every submit until release is closed.
type slowMessages struct {
	domain.ChatMessageDomain
	entered chan struct{}
	release chan struct{}
}

func (m *slowMessages) Submit(context.Context, int64, *model.SubmitMessageRequest) (*model.ChatMessage, error) {
	m.entered <- struct{}{}
	<-m.release
	return nil, errorx.New(errorx.BadRequest, "Rejected")
}

func Test_chatProxy_SlowSubmitKeepsReceiving(t *testing.T) {
	messages := &slowMessages{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestServerWithMessages(t, messages)

	alice := s.dial(t, &testutil.Student1, testutil.Room1.Name)
	readUntil(t, alice, event.ActionUserConnected)

	sendMessage(t, alice, "hello")
	select {
	case <-messages.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit was not called")
	}

	// Far more room events than the session buffer holds arrive while the
	// submit of alice is still running.
	total := 3 * xcontext.Configs(s.ctx).Chat.SessionBufferSize
	roomKey := domain.RoomKey(testutil.Room1.ID)
	for i := 0; i < total; i++ {
		ev := &event.UsersConnected{Users: []string{"user" + strconv.Itoa(i)}}
		require.NoError(t, s.broadcaster.Publish(s.ctx, roomKey, ev))
		time.Sleep(time.Millisecond)
	}
	close(messages.release)

	received := 0
	rejected := false
	for received < total || !rejected {
		f := readFrame(t, alice)
		switch {
		case f.Type == event.TypeError:
			require.Equal(t, errorx.BadRequest, f.Code)
			rejected = true
		case f.Action == event.ActionUserConnected && len(f.Users) == 1 && strings.HasPrefix(f.Users[0], "user"):
			require.Equal(t, "user"+strconv.Itoa(received), f.Users[0])
			received++
		}
	}

	online, err := s.presence.ListOnline(s.ctx, roomKey)
	require.NoError(t, err)
	require.Equal(t, []string{testutil.Student1.ID}, online)
}

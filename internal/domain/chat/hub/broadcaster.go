package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/questx-lab/coursechat/internal/domain/chat/event"
	"github.com/questx-lab/coursechat/pkg/pubsub"
	"github.com/questx-lab/coursechat/pkg/ws"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

// Broadcaster delivers the events of a room to every subscribed session,
// including the session of the publisher.
type Broadcaster interface {
	Publish(ctx context.Context, roomKey string, ev event.Event) error
	Subscribe(ctx context.Context, roomKey string, s *Session) error
	Unsubscribe(ctx context.Context, roomKey string, s *Session) error
}

type localBroadcaster struct {
	router *Router
}

// NewLocalBroadcaster serves rooms whose connections all live in this
// process.
func NewLocalBroadcaster(router *Router) *localBroadcaster {
	return &localBroadcaster{router: router}
}

func (b *localBroadcaster) Publish(ctx context.Context, roomKey string, ev event.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	b.router.Broadcast(roomKey, msg)
	return nil
}

func (b *localBroadcaster) Subscribe(ctx context.Context, roomKey string, s *Session) error {
	b.router.Register(ctx, roomKey, s)
	return nil
}

func (b *localBroadcaster) Unsubscribe(ctx context.Context, roomKey string, s *Session) error {
	b.router.Unregister(roomKey, s)
	return nil
}

type busBroadcaster struct {
	router    *Router
	publisher pubsub.Publisher
	topic     string
	compress  bool
}

// NewBusBroadcaster publishes events through a pub/sub fabric shared by every
// node. Each node must feed what it receives from the fabric into Handle.
func NewBusBroadcaster(router *Router, publisher pubsub.Publisher, topic string, compress bool) *busBroadcaster {
	return &busBroadcaster{
		router:    router,
		publisher: publisher,
		topic:     topic,
		compress:  compress,
	}
}

func (b *busBroadcaster) Publish(ctx context.Context, roomKey string, ev event.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if b.compress {
		msg, err = ws.Compress(msg)
		if err != nil {
			return err
		}
	}

	return b.publisher.Publish(ctx, b.topic, &pubsub.Pack{Key: []byte(roomKey), Msg: msg})
}

func (b *busBroadcaster) Subscribe(ctx context.Context, roomKey string, s *Session) error {
	b.router.Register(ctx, roomKey, s)
	return nil
}

func (b *busBroadcaster) Unsubscribe(ctx context.Context, roomKey string, s *Session) error {
	b.router.Unregister(roomKey, s)
	return nil
}

// Handle is the pubsub.SubscribeHandler of the fabric.
func (b *busBroadcaster) Handle(ctx context.Context, pack *pubsub.Pack, t time.Time) {
	msg := pack.Msg
	if b.compress {
		var err error
		msg, err = ws.Decompress(pack.Msg)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot decompress event of room %s: %v", pack.Key, err)
			return
		}
	}

	b.router.Broadcast(string(pack.Key), msg)
}

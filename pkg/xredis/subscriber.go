package xredis

import (
	"context"
	"strings"
	"time"

	"github.com/questx-lab/coursechat/pkg/pubsub"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/redis/go-redis/v9"
)

type subscriber struct {
	client  Client
	topic   string
	handler pubsub.SubscribeHandler

	ps *redis.PubSub
}

// NewSubscriber receives every pack published on "<topic>:*". Redis pub/sub
// has no consumer groups, so every subscriber sees every pack.
func NewSubscriber(client Client, topic string, handler pubsub.SubscribeHandler) pubsub.Subscriber {
	return &subscriber{client: client, topic: topic, handler: handler}
}

func (s *subscriber) Subscribe(ctx context.Context) error {
	s.ps = s.client.PSubscribe(ctx, s.topic+":*")

	// Wait for the confirmation so no pack published after this call is lost.
	if _, err := s.ps.Receive(ctx); err != nil {
		s.ps.Close()
		return err
	}

	go func() {
		prefix := s.topic + ":"
		for msg := range s.ps.Channel() {
			s.handler(ctx, &pubsub.Pack{
				Key: []byte(strings.TrimPrefix(msg.Channel, prefix)),
				Msg: []byte(msg.Payload),
			}, time.Now())
		}

		xcontext.Logger(ctx).Infof("Redis subscriber of topic %s stopped", s.topic)
	}()

	return nil
}

func (s *subscriber) Stop(ctx context.Context) error {
	if s.ps == nil {
		return nil
	}

	return s.ps.Close()
}

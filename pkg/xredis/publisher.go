package xredis

import (
	"context"

	"github.com/questx-lab/coursechat/pkg/pubsub"
)

type publisher struct {
	client Client
}

// NewPublisher publishes every pack on the channel "<topic>:<key>".
func NewPublisher(client Client) pubsub.Publisher {
	return &publisher{client: client}
}

func (p *publisher) Publish(ctx context.Context, topic string, pack *pubsub.Pack) error {
	return p.client.Publish(ctx, topic+":"+string(pack.Key), pack.Msg)
}

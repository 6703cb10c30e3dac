package pubsub

import (
	"context"
	"time"
)

type SubscribeHandler func(context.Context, *Pack, time.Time)

type Subscriber interface {
	// Subscribe starts delivering packs to the handler in the background and
	// returns once the subscription is active.
	Subscribe(ctx context.Context) error
	Stop(ctx context.Context) error
}

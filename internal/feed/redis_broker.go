package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"pulse-chat/pkg/logger"
)

const channelPrefix = "feed:"

// RedisBroker carries change events over redis pub/sub, one channel per
// table. Redis delivers published messages to each subscriber in publish
// order, which gives the per-subscription ordering the consumers rely on.
type RedisBroker struct {
	Client *goredis.Client
	log    *logger.Logger
}

func NewRedisBroker(addr, password string, db int, log *logger.Logger) *RedisBroker {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBroker{Client: rdb, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.Client.Publish(ctx, channelPrefix+ev.Table, data).Err()
}

type redisSub struct {
	pubsub *goredis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisSub) Close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, table string, kinds []Kind, filter Filter, h Handler) (Subscription, error) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := b.Client.Subscribe(subCtx, channelPrefix+table)

	// Force the subscription to be established before returning so callers
	// never miss events published right after Subscribe.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSub{pubsub: pubsub, cancel: cancel}
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if b.log != nil {
					b.log.Errorf("feed: dropping malformed event on %s: %v", msg.Channel, err)
				}
				continue
			}
			if !kindMatches(kinds, ev.Kind) {
				continue
			}
			if filter != nil && !filter(ev) {
				continue
			}
			h(subCtx, ev)
		}
	}()
	return sub, nil
}

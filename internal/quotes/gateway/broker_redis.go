package gateway

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"quotebridge.com/pkg/xredis"
)

// RedisBroker 基于 Redis PUBLISH / (P)SUBSCRIBE
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// RedisDialer 每次重连新建 client，旧 client 由 Transport 关闭
func RedisDialer(cfg xredis.Config) Dialer {
	return func(ctx context.Context) (Broker, error) {
		return NewRedisBroker(xredis.NewRedis(&cfg)), nil
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	var patterns, channels []string
	for _, t := range topics {
		if isPattern(t) {
			patterns = append(patterns, t)
		} else {
			channels = append(channels, t)
		}
	}

	ps := b.rdb.Subscribe(ctx)
	if len(patterns) > 0 {
		if err := ps.PSubscribe(ctx, patterns...); err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("psubscribe: %w", err)
		}
	}
	if len(channels) > 0 {
		if err := ps.Subscribe(ctx, channels...); err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	// 等订阅确认，保证返回后发布的消息都能收到
	for i := 0; i < len(topics); i++ {
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("subscribe confirm: %w", err)
		}
	}

	out := make(chan Message, 4096)
	in := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}

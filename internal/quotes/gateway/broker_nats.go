package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(url string, opts ...nats.Option) (*NatsBroker, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBroker{nc: nc}, nil
}

// NatsDialer 给 Transport 用的 Dialer
func NatsDialer(url string, opts ...nats.Option) Dialer {
	return func(ctx context.Context) (Broker, error) {
		return NewNatsBroker(url, opts...)
	}
}

func (b *NatsBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	subj := topicToSubject(topic)
	return b.nc.Publish(subj, payload)
}

func (b *NatsBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	out := make(chan Message, 8192)
	var (
		mu     sync.RWMutex
		closed bool
	)

	// 保存订阅，退出时取消
	subs := make([]*nats.Subscription, 0, len(topics))

	for _, t := range topics {
		subj := topicToSubject(t) // market_data:ticks:* -> market_data.ticks.*
		sub, err := b.nc.Subscribe(subj, func(m *nats.Msg) {
			msg := Message{
				Topic:   subjectToTopic(m.Subject),
				Payload: m.Data,
			}
			mu.RLock()
			defer mu.RUnlock()
			if closed {
				return
			}
			// at-most-once：慢消费者直接丢，避免把 NATS 回调卡死
			select {
			case out <- msg:
			default:
			}
		})
		if err != nil {
			for _, ss := range subs {
				_ = ss.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	// 监听 ctx.Done 清理
	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

// Ping flush 一次，等服务端 PONG
func (b *NatsBroker) Ping(ctx context.Context) error {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return b.nc.FlushTimeout(timeout)
}

func (b *NatsBroker) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func topicToSubject(topic string) string { return strings.ReplaceAll(topic, ":", ".") }
func subjectToTopic(subj string) string  { return strings.ReplaceAll(subj, ".", ":") }

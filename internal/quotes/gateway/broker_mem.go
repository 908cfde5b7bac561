package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrBrokerClosed = errors.New("broker closed")

type memSub struct {
	topics []string
	ch     chan Message
}

// MemBroker 进程内 fanout，单机部署和测试用
type MemBroker struct {
	mu     sync.RWMutex
	subs   map[*memSub]struct{}
	closed bool
}

func NewMemBroker() *MemBroker {
	return &MemBroker{subs: make(map[*memSub]struct{})}
}

func (b *MemBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	// fanout：at-most-once，慢订阅者直接丢
	msg := Message{Topic: topic, Payload: payload}
	for s := range b.subs {
		for _, t := range s.topics {
			if !matchTopic(t, topic) {
				continue
			}
			select {
			case s.ch <- msg:
			default:
			}
			break
		}
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	s := &memSub{topics: append([]string(nil), topics...), ch: make(chan Message, 4096)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
		b.mu.Unlock()
	}()

	return s.ch, nil
}

func (b *MemBroker) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return ctx.Err()
}

func (b *MemBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
	return nil
}

// Dialer 每次拨号返回一个共享本 broker 的句柄。
// Transport 探测失败或断开时关闭的是句柄，fanout 和订阅者不受影响，下次拨号可以恢复
func (b *MemBroker) Dialer() Dialer {
	return func(ctx context.Context) (Broker, error) {
		return &memHandle{core: b}, nil
	}
}

type memHandle struct {
	core   *MemBroker
	closed atomic.Bool
}

func (h *memHandle) Publish(ctx context.Context, topic string, payload []byte) error {
	if h.closed.Load() {
		return ErrBrokerClosed
	}
	return h.core.Publish(ctx, topic, payload)
}

func (h *memHandle) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	if h.closed.Load() {
		return nil, ErrBrokerClosed
	}
	return h.core.Subscribe(ctx, topics)
}

func (h *memHandle) Ping(ctx context.Context) error {
	if h.closed.Load() {
		return ErrBrokerClosed
	}
	return h.core.Ping(ctx)
}

func (h *memHandle) Close() error {
	h.closed.Store(true)
	return nil
}

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/logger"
	"quotebridge.com/pkg/metrics"
	"quotebridge.com/pkg/safe"
	"quotebridge.com/pkg/xerr"
)

const depName = "broadcast"

// TopicPrefix 所有 tick 的 topic 前缀
const TopicPrefix = "market_data:ticks:"

func TopicFor(symbol string) string { return TopicPrefix + symbol }

// Transport 对外广播报价。
// 连接状态只在 Connect / 探测失败 / Disconnect 时变化；Publish 永远不 panic、不返回 error
type Transport struct {
	dial         Dialer
	probeTimeout time.Duration

	lifecycle sync.Mutex

	mu     sync.RWMutex
	broker Broker
	state  model.ConnState
}

func NewTransport(dial Dialer, probeTimeout time.Duration) *Transport {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	metrics.SetDependencyUp(depName, false)
	return &Transport{dial: dial, probeTimeout: probeTimeout, state: model.Disconnected}
}

func (t *Transport) State() model.ConnState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Connect 建连后先 Ping 一次再算成功
func (t *Transport) Connect(ctx context.Context) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if t.State() == model.Connected {
		return nil
	}

	b, err := t.dial(ctx)
	if err != nil {
		return &xerr.ConnectError{Dep: depName, Err: err}
	}
	pctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	err = b.Ping(pctx)
	cancel()
	if err != nil {
		_ = b.Close()
		return &xerr.ConnectError{Dep: depName, Err: fmt.Errorf("ping: %w", err)}
	}

	t.mu.Lock()
	old := t.broker
	t.broker = b
	t.state = model.Connected
	t.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	metrics.SetDependencyUp(depName, true)
	logger.Info(ctx, "broadcast connected")
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if b := t.drop(nil); b != nil {
		if err := b.Close(); err != nil {
			logger.Warn(ctx, "broadcast close", zap.Error(err))
		}
		logger.Info(ctx, "broadcast disconnected")
	}
}

// drop 把状态置为 Disconnected 并摘掉 broker；expect 非 nil 时只摘掉同一个 broker
func (t *Transport) drop(expect Broker) Broker {
	t.mu.Lock()
	b := t.broker
	if expect != nil && b != expect {
		t.mu.Unlock()
		return nil
	}
	t.broker = nil
	t.state = model.Disconnected
	t.mu.Unlock()
	metrics.SetDependencyUp(depName, false)
	return b
}

func (t *Transport) current() Broker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != model.Connected {
		return nil
	}
	return t.broker
}

// IsHealthy 每次都重新 Ping；失败（包括 panic）会关闭并丢弃 broker。
// Ping 只受 probeTimeout 约束，不跟随调用方取消
func (t *Transport) IsHealthy(ctx context.Context) bool {
	b := t.current()
	if b == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.probeTimeout)
	defer cancel()
	err := safe.Run(pctx, b.Ping)
	if err == nil {
		return true
	}
	if dropped := t.drop(b); dropped != nil {
		_ = safe.Run(pctx, func(context.Context) error { return dropped.Close() })
		logger.Warn(ctx, "broadcast probe failed, marked disconnected", zap.Error(err))
	}
	return false
}

// Publish 编码并发布到 topic，任何失败都只返回 false
func (t *Transport) Publish(ctx context.Context, topic string, q model.Quote) bool {
	err := t.publish(ctx, topic, q)
	if err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "publish tick", zap.String("topic", topic), zap.Error(err))
		return false
	}
	metrics.PublishTotal.WithLabelValues("ok").Inc()
	return true
}

func (t *Transport) publish(ctx context.Context, topic string, q model.Quote) error {
	b := t.current()
	if b == nil {
		return xerr.ErrNotConnected
	}
	payload, err := model.Encode(q)
	if err != nil {
		return err
	}
	return safe.Run(ctx, func(ctx context.Context) error {
		return b.Publish(ctx, topic, payload)
	})
}

// Tail 订阅 topics，把解码后的报价交给 fn；ctx 取消或订阅关闭时返回
func Tail(ctx context.Context, b Broker, topics []string, fn func(topic string, q model.Quote)) error {
	ch, err := b.Subscribe(ctx, topics)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			q, err := model.Decode(m.Payload)
			if err != nil {
				logger.Warn(ctx, "drop undecodable tick", zap.String("topic", m.Topic), zap.Error(err))
				continue
			}
			fn(m.Topic, q)
		}
	}
}

package gateway

import (
	"context"
	"strings"
)

type Message struct {
	Topic   string
	Payload []byte
}

type Broker interface {
	// publish
	Publish(ctx context.Context, topic string, payload []byte) error
	// 订阅；topic 以 * 结尾时按前缀匹配
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	// 存活探测，一次往返
	Ping(ctx context.Context) error
	// 关闭
	Close() error
}

// Dialer 创建并连接一个 Broker，Transport 重连时调用
type Dialer func(ctx context.Context) (Broker, error)

func isPattern(topic string) bool { return strings.HasSuffix(topic, "*") }

func matchTopic(pattern, topic string) bool {
	if !isPattern(pattern) {
		return pattern == topic
	}
	return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
}

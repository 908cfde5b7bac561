package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"quotebridge.com/pkg/metrics"
)

type Rule struct {
	// Half-Open 状态允许通过的探测请求数（MaxRequests=0 时库会当作 1）
	MaxRequests uint32

	// Closed 状态计数窗口
	Interval time.Duration

	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration

	// 触发熔断条件（两种之一即可）
	TripConsecutiveFailures uint32  // 连续失败阈值
	TripFailureRate         float64 // 失败率阈值（0~1）
	TripMinRequests         uint32  // 失败率计算的最小样本数
}

// Manager 按名字懒创建熔断器（例如按上游接口名）
type Manager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[struct{}]

	rule Rule
	// IsSuccessful 决定哪些错误不计入熔断失败；nil 表示所有 error 都算失败
	isSuccessful func(err error) bool
}

func NewManager(rule Rule, isSuccessful func(err error) bool) *Manager {
	if rule.MaxRequests == 0 {
		rule.MaxRequests = 1
	}
	if rule.Timeout <= 0 {
		rule.Timeout = 5 * time.Second
	}
	if rule.Interval <= 0 {
		rule.Interval = 30 * time.Second
	}
	if rule.TripConsecutiveFailures == 0 && rule.TripFailureRate == 0 {
		rule.TripConsecutiveFailures = 5
	}
	if rule.TripMinRequests == 0 {
		rule.TripMinRequests = 20
	}
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}
	return &Manager{
		m:            make(map[string]*gobreaker.CircuitBreaker[struct{}], 8),
		rule:         rule,
		isSuccessful: isSuccessful,
	}
}

func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[struct{}] {
	// 快路径：读锁
	m.mu.RLock()
	cb := m.m[name]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[name]; cb != nil {
		return cb
	}

	rule := m.rule
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: rule.MaxRequests,
		Interval:    rule.Interval,
		Timeout:     rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				return float64(c.TotalFailures)/float64(c.Requests) >= rule.TripFailureRate
			}
			return false
		},
		IsSuccessful: m.isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CBState.WithLabelValues(name).Set(stateValue(to))
		},
	}

	cb = gobreaker.NewCircuitBreaker[struct{}](st)
	m.m[name] = cb
	metrics.CBState.WithLabelValues(name).Set(0)
	return cb
}

// Do 在名为 name 的熔断器里执行 fn；熔断拒绝时返回 gobreaker 的 ErrOpenState / ErrTooManyRequests
func (m *Manager) Do(name string, fn func() error) error {
	_, err := m.Get(name).Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if IsRejected(err) {
		metrics.CBRejectTotal.WithLabelValues(name, "open").Inc()
	}
	return err
}

// IsRejected 熔断器直接拒绝（没有打到下游）
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

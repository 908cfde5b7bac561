package feed

import (
	"context"
	"errors"
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

const depName = "feed"

const defaultProbeTimeout = 2 * time.Second

type Option func(*Conn)

func WithProbeTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// Conn 到行情终端的会话。
// 轮询和按需查询共用同一个 Conn：mu 只保护状态字段，不跨 I/O 持有；
// Connect/Disconnect 由 lifecycle 串行化。
type Conn struct {
	term         Terminal
	probeTimeout time.Duration

	lifecycle sync.Mutex

	mu    sync.RWMutex
	state model.ConnState
	gen   uint64 // 每次 Connect/Disconnect +1，防止过期探测把新连接打成断开
}

func NewConn(term Terminal, opts ...Option) *Conn {
	c := &Conn{
		term:         term,
		probeTimeout: defaultProbeTimeout,
		state:        model.Disconnected,
	}
	for _, o := range opts {
		o(c)
	}
	metrics.SetDependencyUp(depName, false)
	return c
}

func (c *Conn) State() model.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) snapshot() (model.ConnState, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.gen
}

func (c *Conn) setState(s model.ConnState) {
	c.mu.Lock()
	c.state = s
	c.gen++
	c.mu.Unlock()
	metrics.SetDependencyUp(depName, s == model.Connected)
}

// Connect 建立会话：Initialize 后用 TerminalInfo 握手。已连接时直接返回
func (c *Conn) Connect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.State() == model.Connected {
		return nil
	}

	if err := c.term.Initialize(ctx); err != nil {
		return &xerr.ConnectError{Dep: depName, Err: fmt.Errorf("initialize: %w", err)}
	}
	info, err := c.term.TerminalInfo(ctx)
	if err != nil {
		// 握手失败，把半开的会话关掉
		if serr := c.term.Shutdown(ctx); serr != nil {
			logger.Warn(ctx, "feed shutdown after failed handshake", zap.Error(serr))
		}
		return &xerr.ConnectError{Dep: depName, Err: fmt.Errorf("terminal info: %w", err)}
	}

	c.setState(model.Connected)
	logger.Info(ctx, "feed connected",
		zap.String("terminal", info.Name),
		zap.String("company", info.Company),
		zap.Int("build", info.Build))
	return nil
}

// Disconnect 无条件断开，未连接时调用也安全
func (c *Conn) Disconnect(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.setState(model.Disconnected)
	if err := c.term.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "feed shutdown", zap.Error(err))
		return
	}
	logger.Info(ctx, "feed disconnected")
}

// IsHealthy 主动探测终端。探测失败会把状态降为 Disconnected。
// 探测不跟随调用方取消，只受 probeTimeout 约束：调用方断开不能算终端失联
func (c *Conn) IsHealthy(ctx context.Context) bool {
	st, gen := c.snapshot()
	if st != model.Connected {
		return false
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.probeTimeout)
	defer cancel()
	err := safe.Run(pctx, func(ctx context.Context) error {
		_, err := c.term.TerminalInfo(ctx)
		return err
	})
	if err == nil {
		return true
	}

	c.mu.Lock()
	downgraded := c.gen == gen && c.state == model.Connected
	if downgraded {
		c.state = model.Disconnected
		c.gen++
	}
	c.mu.Unlock()
	if downgraded {
		metrics.SetDependencyUp(depName, false)
		logger.Warn(ctx, "feed probe failed, marked disconnected", zap.Error(err))
	}
	return false
}

// FetchQuote 拉取一个品种的最新报价。
// 品种不在 watch list 时注册一次、重查一次，仍然没有就返回 ErrSymbolUnavailable
func (c *Conn) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if !c.IsHealthy(ctx) {
		return model.Quote{}, xerr.ErrNotConnected
	}

	_, ok, err := c.term.SymbolInfo(ctx, symbol)
	if err != nil {
		return model.Quote{}, fmt.Errorf("symbol info %s: %w", symbol, err)
	}
	if !ok {
		if _, err := c.term.SymbolSelect(ctx, symbol, true); err != nil {
			return model.Quote{}, fmt.Errorf("symbol select %s: %w", symbol, err)
		}
		_, ok, err = c.term.SymbolInfo(ctx, symbol)
		if err != nil {
			return model.Quote{}, fmt.Errorf("symbol info %s: %w", symbol, err)
		}
		if !ok {
			return model.Quote{}, fmt.Errorf("%w: %s", xerr.ErrSymbolUnavailable, symbol)
		}
	}

	raw, ok, err := c.term.SymbolInfoTick(ctx, symbol)
	if err != nil {
		return model.Quote{}, fmt.Errorf("symbol tick %s: %w", symbol, err)
	}
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", xerr.ErrNoData, symbol)
	}
	return model.NewQuote(raw)
}

// ResultLabel fetch 结果的 metrics 标签
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, xerr.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, xerr.ErrSymbolUnavailable):
		return "symbol_unavailable"
	case errors.Is(err, xerr.ErrNoData):
		return "no_data"
	case errors.Is(err, xerr.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// Package simterm 模拟终端：用随机游走生成报价，开发环境和测试里代替真实终端。
package simterm

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"quotebridge.com/internal/quotes/feed"
	"quotebridge.com/internal/quotes/model"
)

var (
	ErrNotInitialized = errors.New("simterm: terminal not initialized")
	ErrProbeFailed    = errors.New("simterm: terminal not responding")
	ErrInitFailed     = errors.New("simterm: initialize failed")
)

// tick flags：bid 和 ask 都变化
const tickFlagBidAsk = 2 | 4

type Config struct {
	// Symbols 初始就在 watch list 里的品种
	Symbols []string
	// Hidden 终端有但不在 watch list，需要 SymbolSelect 之后才能查到
	Hidden []string
	// Quiet 在 watch list 里但没有 tick（比如休市）
	Quiet []string
	Seed  uint64
	Now   func() time.Time
}

type instrument struct {
	name   string
	digits int32
	price  decimal.Decimal
	spread decimal.Decimal
	quiet  bool
}

type Terminal struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	now         func() time.Time
	instruments map[string]*instrument
	watched     map[string]bool
	initialized bool

	failProbe atomic.Bool
	failInit  atomic.Bool
}

var _ feed.Terminal = (*Terminal)(nil)

func New(cfg Config) *Terminal {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	t := &Terminal{
		rnd:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		now:         cfg.Now,
		instruments: make(map[string]*instrument),
		watched:     make(map[string]bool),
	}
	quiet := make(map[string]bool, len(cfg.Quiet))
	for _, s := range cfg.Quiet {
		quiet[s] = true
	}
	for _, s := range model.NormalizeSymbols(cfg.Symbols) {
		t.instruments[s] = newInstrument(s, quiet[s])
		t.watched[s] = true
	}
	for _, s := range model.NormalizeSymbols(cfg.Hidden) {
		if _, ok := t.instruments[s]; !ok {
			t.instruments[s] = newInstrument(s, quiet[s])
		}
	}
	return t
}

// 常见品种的起始价，其它品种按 100.00 起
var basePrices = map[string]string{
	"EURUSD": "1.08500",
	"GBPUSD": "1.27000",
	"USDJPY": "151.200",
	"AUDUSD": "0.65500",
	"USDCHF": "0.88000",
	"XAUUSD": "2350.00",
}

func newInstrument(name string, quiet bool) *instrument {
	digits := int32(5)
	switch {
	case strings.HasSuffix(name, "JPY"):
		digits = 3
	case strings.HasPrefix(name, "XAU"), !isFXPair(name):
		digits = 2
	}
	price := decimal.NewFromInt(100)
	if p, ok := basePrices[name]; ok {
		price = decimal.RequireFromString(p)
	}
	return &instrument{
		name:   name,
		digits: digits,
		price:  price.Round(digits),
		spread: decimal.New(20, -digits), // 20 points
		quiet:  quiet,
	}
}

func isFXPair(name string) bool {
	if len(name) != 6 {
		return false
	}
	for _, r := range name {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// FailProbe 打开后 TerminalInfo 返回错误，模拟终端挂掉
func (t *Terminal) FailProbe(fail bool) { t.failProbe.Store(fail) }

// FailInit 打开后 Initialize 返回错误
func (t *Terminal) FailInit(fail bool) { t.failInit.Store(fail) }

func (t *Terminal) Initialize(ctx context.Context) error {
	if t.failInit.Load() {
		return ErrInitFailed
	}
	t.mu.Lock()
	t.initialized = true
	t.mu.Unlock()
	return nil
}

func (t *Terminal) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.initialized = false
	t.mu.Unlock()
	return nil
}

func (t *Terminal) TerminalInfo(ctx context.Context) (feed.TerminalInfo, error) {
	if err := ctx.Err(); err != nil {
		return feed.TerminalInfo{}, err
	}
	if t.failProbe.Load() {
		return feed.TerminalInfo{}, ErrProbeFailed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return feed.TerminalInfo{}, ErrNotInitialized
	}
	return feed.TerminalInfo{Name: "simterm", Company: "quotebridge", Build: 1, Connected: true}, nil
}

func (t *Terminal) SymbolInfo(ctx context.Context, symbol string) (feed.SymbolInfo, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return feed.SymbolInfo{}, false, ErrNotInitialized
	}
	ins, ok := t.instruments[symbol]
	if !ok || !t.watched[symbol] {
		return feed.SymbolInfo{}, false, nil
	}
	return feed.SymbolInfo{Name: ins.name, Description: "simulated " + ins.name, Digits: int(ins.digits), Visible: true}, true, nil
}

func (t *Terminal) SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return false, ErrNotInitialized
	}
	if _, ok := t.instruments[symbol]; !ok {
		return false, nil
	}
	t.watched[symbol] = enable
	return true, nil
}

// SymbolInfoTick 每次调用价格随机游走一步
func (t *Terminal) SymbolInfoTick(ctx context.Context, symbol string) (model.RawTick, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return nil, false, ErrNotInitialized
	}
	ins, ok := t.instruments[symbol]
	if !ok || !t.watched[symbol] || ins.quiet {
		return nil, false, nil
	}

	// 单步波动约 1bp
	step := ins.price.Mul(decimal.NewFromFloat(t.rnd.NormFloat64() * 0.0001)).Round(ins.digits)
	next := ins.price.Add(step)
	if next.Sign() > 0 {
		ins.price = next
	}
	bid := ins.price
	ask := bid.Add(ins.spread)

	now := t.now()
	return model.RawTick{
		"time":        now.Unix(),
		"bid":         bid.InexactFloat64(),
		"ask":         ask.InexactFloat64(),
		"last":        0.0,
		"volume":      int64(0),
		"time_msc":    now.UnixMilli(),
		"flags":       int64(tickFlagBidAsk),
		"volume_real": 0.0,
	}, true, nil
}

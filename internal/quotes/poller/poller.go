package poller

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"quotebridge.com/internal/quotes/feed"
	"quotebridge.com/internal/quotes/gateway"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/logger"
	"quotebridge.com/pkg/metrics"
	"quotebridge.com/pkg/safe"
)

const (
	DefaultInterval = time.Second
	DefaultBackoff  = 5 * time.Second
)

// Feed 行情来源（feed.Conn）
type Feed interface {
	Connect(ctx context.Context) error
	IsHealthy(ctx context.Context) bool
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// Broadcaster 广播出口（gateway.Transport）
type Broadcaster interface {
	Connect(ctx context.Context) error
	IsHealthy(ctx context.Context) bool
	Publish(ctx context.Context, topic string, q model.Quote) bool
}

// Sleeper 等待 d；ctx 取消时提前返回 ctx.Err()
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.backoff = d
		}
	}
}

// WithReconnect 依赖不健康时，在退避前尝试重连一次
func WithReconnect(on bool) Option {
	return func(l *Loop) { l.reconnect = on }
}

func WithSleeper(s Sleeper) Option {
	return func(l *Loop) {
		if s != nil {
			l.sleep = s
		}
	}
}

// Loop 定时把每个品种的最新报价从 feed 搬到广播出口。
// 单个品种、单个依赖、单轮的失败都不会让 Loop 退出，只有 ctx 取消会
type Loop struct {
	feed    Feed
	bc      Broadcaster
	symbols []string

	interval  time.Duration
	backoff   time.Duration
	reconnect bool
	sleep     Sleeper
	tracer    trace.Tracer
}

func New(f Feed, bc Broadcaster, symbols []string, opts ...Option) *Loop {
	l := &Loop{
		feed:      f,
		bc:        bc,
		symbols:   model.NormalizeSymbols(symbols),
		interval:  DefaultInterval,
		backoff:   DefaultBackoff,
		reconnect: true,
		sleep:     sleepCtx,
		tracer:    otel.Tracer("quotebridge/poller"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) Symbols() []string { return append([]string(nil), l.symbols...) }

// Run 阻塞直到 ctx 取消，返回 ctx.Err()
func (l *Loop) Run(ctx context.Context) error {
	logger.Info(ctx, "poller started",
		zap.Strings("symbols", l.symbols),
		zap.Duration("interval", l.interval),
		zap.Duration("backoff", l.backoff))
	defer logger.Info(ctx, "poller stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := l.RunCycle(ctx)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RunCycle 跑一轮，返回本轮之后应该等待的时长
func (l *Loop) RunCycle(ctx context.Context) time.Duration {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "poller.cycle")
	defer span.End()

	var (
		wait    time.Duration
		outcome string
	)
	err := safe.Run(ctx, func(ctx context.Context) error {
		wait, outcome = l.cycle(ctx)
		return nil
	})
	if err != nil {
		wait, outcome = l.backoff, "panic"
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle panicked")
		logger.Error(ctx, "poll cycle panicked", zap.Error(err))
	}

	span.SetAttributes(attribute.String("poller.outcome", outcome))
	metrics.PollCyclesTotal.WithLabelValues(outcome).Inc()
	metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	return wait
}

func (l *Loop) cycle(ctx context.Context) (time.Duration, string) {
	if !l.feed.IsHealthy(ctx) {
		logger.Warn(ctx, "feed not connected, pausing", zap.Duration("backoff", l.backoff))
		l.tryReconnect(ctx, "feed", l.feed.Connect)
		return l.backoff, "feed_down"
	}
	if !l.bc.IsHealthy(ctx) {
		logger.Warn(ctx, "broadcast not connected, pausing", zap.Duration("backoff", l.backoff))
		l.tryReconnect(ctx, "broadcast", l.bc.Connect)
		return l.backoff, "broadcast_down"
	}

	published := 0
	for _, sym := range l.symbols {
		if ctx.Err() != nil {
			break
		}
		q, err := l.feed.FetchQuote(ctx, sym)
		metrics.FetchTotal.WithLabelValues("poll", feed.ResultLabel(err)).Inc()
		if err != nil {
			logger.Warn(ctx, "fetch quote", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if l.bc.Publish(ctx, gateway.TopicFor(sym), q) {
			published++
		}
	}
	logger.Debug(ctx, "poll cycle done", zap.Int("published", published), zap.Int("symbols", len(l.symbols)))
	return l.interval, "ok"
}

func (l *Loop) tryReconnect(ctx context.Context, dep string, connect func(context.Context) error) {
	if !l.reconnect {
		return
	}
	if err := connect(ctx); err != nil {
		logger.Warn(ctx, "reconnect failed", zap.String("dep", dep), zap.Error(err))
		return
	}
	logger.Info(ctx, "reconnected", zap.String("dep", dep))
}

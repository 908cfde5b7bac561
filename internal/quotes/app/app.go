package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"quotebridge.com/internal/quotes/api"
	"quotebridge.com/internal/quotes/config"
	"quotebridge.com/internal/quotes/feed"
	"quotebridge.com/internal/quotes/feed/mt5bridge"
	"quotebridge.com/internal/quotes/feed/simterm"
	"quotebridge.com/internal/quotes/gateway"
	"quotebridge.com/internal/quotes/poller"
	"quotebridge.com/internal/quotes/service"
	vipconfig "quotebridge.com/pkg/config"
	"quotebridge.com/pkg/logger"
	"quotebridge.com/pkg/ratelimit"
	"quotebridge.com/pkg/trace"
	"quotebridge.com/pkg/xredis"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg *config.Config
	v   *viper.Viper

	feed      *feed.Conn
	broadcast *gateway.Transport
	loop      *poller.Loop
	srv       *http.Server

	traceShutdown func(context.Context) error
}

// New 加载配置、初始化日志和 trace、组装各组件；不做任何外部连接
func New(ctx context.Context, configName string, paths ...string) (*App, error) {
	cfg := &config.Config{}
	v, err := vipconfig.Load(vipconfig.Options{
		Name:     configName,
		Paths:    paths,
		Defaults: config.Defaults(),
		Watch:    true,
		OnChange: func(v *viper.Viper) {
			// 只热更新日志级别
			logger.SetLevel(v.GetString("log.level"))
		},
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.InitWithFile(cfg.Name, cfg.Log.Level, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})

	traceShutdown, err := trace.InitTrace(cfg.Name, trace.Config{
		Enabled:  cfg.Trace.Enabled,
		Exporter: cfg.Trace.Exporter,
		Endpoint: cfg.Trace.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init trace: %w", err)
	}

	a := &App{cfg: cfg, v: v, traceShutdown: traceShutdown}
	a.feed = feed.NewConn(newTerminal(cfg), feed.WithProbeTimeout(cfg.Feed.ProbeTimeout))
	a.broadcast = gateway.NewTransport(newDialer(cfg), cfg.Broadcast.ProbeTimeout)
	a.loop = poller.New(a.feed, a.broadcast, cfg.Poller.Symbols,
		poller.WithInterval(cfg.Poller.Interval),
		poller.WithBackoff(cfg.Poller.Backoff),
		poller.WithReconnect(cfg.Poller.Reconnect),
	)

	svc := service.NewQuoteService(a.feed, a.broadcast)
	a.srv = api.NewServer(ctx, api.Options{
		ServiceName: cfg.Name,
		Addr:        cfg.HTTP.Addr,
		RPS:         cfg.HTTP.RateLimit.RPS,
		Burst:       cfg.HTTP.RateLimit.Burst,
		Trace:       cfg.Trace.Enabled,
	}, api.NewHandler(svc))
	return a, nil
}

func newTerminal(cfg *config.Config) feed.Terminal {
	switch cfg.Feed.Driver {
	case config.FeedMT5Bridge:
		b := cfg.Feed.Bridge
		return mt5bridge.New(mt5bridge.Config{
			BaseURL: b.BaseURL,
			Timeout: b.Timeout,
			Breaker: ratelimit.Rule{
				Timeout:                 b.Breaker.Timeout,
				TripConsecutiveFailures: b.Breaker.ConsecutiveFailures,
			},
		}, nil)
	default:
		symbols := cfg.Feed.Sim.Symbols
		if len(symbols) == 0 {
			symbols = cfg.Poller.Symbols
		}
		return simterm.New(simterm.Config{
			Symbols: symbols,
			Hidden:  cfg.Feed.Sim.Hidden,
			Seed:    cfg.Feed.Sim.Seed,
		})
	}
}

func newDialer(cfg *config.Config) gateway.Dialer {
	switch cfg.Broadcast.Driver {
	case config.BroadcastNats:
		return gateway.NatsDialer(cfg.Broadcast.Nats.URL,
			nats.Name(cfg.Name),
			nats.Timeout(cfg.Broadcast.ProbeTimeout))
	case config.BroadcastMem:
		// 进程内：每次重连拿新句柄，共用同一个 fanout
		return gateway.NewMemBroker().Dialer()
	default:
		r := cfg.Broadcast.Redis
		return gateway.RedisDialer(xredis.Config{
			Host:        r.Host,
			Port:        r.Port,
			DB:          r.DB,
			Password:    r.Password,
			DialTimeout: r.DialTimeout,
		})
	}
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Handler() http.Handler { return a.srv.Handler }

// Connect 启动时连接两个依赖。失败只记日志，服务以降级状态启动，由轮询自愈
func (a *App) Connect(ctx context.Context) {
	if err := a.feed.Connect(ctx); err != nil {
		logger.Error(ctx, "feed connect failed at startup", zap.String("severity", "critical"), zap.Error(err))
	}
	if err := a.broadcast.Connect(ctx); err != nil {
		logger.Error(ctx, "broadcast connect failed at startup", zap.String("severity", "critical"), zap.Error(err))
	}
}

// Run 连接依赖，启动轮询和 HTTP，直到 ctx 取消或 HTTP 启动失败
func (a *App) Run(ctx context.Context) error {
	a.Connect(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info(gctx, "http listening", zap.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Close 断开依赖并刷日志，Run 返回后调用
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.feed.Disconnect(ctx)
	a.broadcast.Disconnect(ctx)
	if err := a.traceShutdown(ctx); err != nil {
		logger.Warn(ctx, "trace shutdown", zap.Error(err))
	}
	logger.Info(ctx, "market-data exit")
	logger.Sync()
}

package config

import (
	"errors"
	"fmt"
	"time"

	"quotebridge.com/internal/quotes/model"
)

const (
	FeedSim       = "sim"
	FeedMT5Bridge = "mt5bridge"

	BroadcastRedis = "redis"
	BroadcastNats  = "nats"
	BroadcastMem   = "mem"
)

// 总配置
type Config struct {
	Name      string          `mapstructure:"name" yaml:"name"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Feed      FeedConfig      `mapstructure:"feed" yaml:"feed"`
	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`
	Poller    PollerConfig    `mapstructure:"poller" yaml:"poller"`
	Trace     TraceConfig     `mapstructure:"trace" yaml:"trace"`
}

// HTTP 配置
type HTTPConfig struct {
	Addr      string          `mapstructure:"addr" yaml:"addr"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type FeedConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Bridge       BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Sim          SimConfig     `mapstructure:"sim" yaml:"sim"`
}

// mt5bridge
type BridgeConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

type BreakerConfig struct {
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" yaml:"consecutive_failures"`
}

// 模拟终端
type SimConfig struct {
	Symbols []string `mapstructure:"symbols" yaml:"symbols"`
	Hidden  []string `mapstructure:"hidden" yaml:"hidden"`
	Seed    uint64   `mapstructure:"seed" yaml:"seed"`
}

type BroadcastConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Nats         NatsConfig    `mapstructure:"nats" yaml:"nats"`
}

type RedisConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" yaml:"port"`
	DB          int           `mapstructure:"db" yaml:"db"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

type NatsConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type PollerConfig struct {
	Symbols   []string      `mapstructure:"symbols" yaml:"symbols"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	Backoff   time.Duration `mapstructure:"backoff" yaml:"backoff"`
	Reconnect bool          `mapstructure:"reconnect" yaml:"reconnect"`
}

type TraceConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Defaults 文件和环境变量都没给时的取值
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":                                     "market-data",
		"http.addr":                                ":8001",
		"http.rate_limit.rps":                      50,
		"http.rate_limit.burst":                    100,
		"log.level":                                "info",
		"log.max_size_mb":                          10,
		"log.max_age_days":                         10,
		"log.max_backups":                          0,
		"log.compress":                             true,
		"feed.driver":                              FeedSim,
		"feed.probe_timeout":                       "2s",
		"feed.bridge.base_url":                     "http://127.0.0.1:18812",
		"feed.bridge.timeout":                      "3s",
		"feed.bridge.breaker.timeout":              "10s",
		"feed.bridge.breaker.consecutive_failures": 5,
		"feed.sim.symbols":                         []string{"EURUSDm", "GBPUSDm", "USDJPYm"},
		"broadcast.driver":                         BroadcastRedis,
		"broadcast.probe_timeout":                  "2s",
		"broadcast.redis.host":                     "localhost",
		"broadcast.redis.port":                     6379,
		"broadcast.redis.db":                       0,
		"broadcast.redis.dial_timeout":             "5s",
		"broadcast.nats.url":                       "nats://127.0.0.1:4222",
		"poller.symbols":                           []string{"EURUSDm", "GBPUSDm", "USDJPYm"},
		"poller.interval":                          "1s",
		"poller.backoff":                           "5s",
		"poller.reconnect":                         true,
		"trace.enabled":                            false,
		"trace.exporter":                           "otlp",
		"trace.endpoint":                           "localhost:4317",
	}
}

// Validate 检查配置并去重 poller.symbols
func (c *Config) Validate() error {
	var errs []error
	switch c.Feed.Driver {
	case FeedSim, FeedMT5Bridge:
	default:
		errs = append(errs, fmt.Errorf("feed.driver: unknown driver %q", c.Feed.Driver))
	}
	if c.Feed.Driver == FeedMT5Bridge && c.Feed.Bridge.BaseURL == "" {
		errs = append(errs, errors.New("feed.bridge.base_url: required for mt5bridge"))
	}
	switch c.Broadcast.Driver {
	case BroadcastRedis, BroadcastNats, BroadcastMem:
	default:
		errs = append(errs, fmt.Errorf("broadcast.driver: unknown driver %q", c.Broadcast.Driver))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, errors.New("log.max_size_mb: must be positive"))
	}
	if c.Log.MaxAgeDays < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log.max_age_days, log.max_backups: must not be negative"))
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval: must be positive"))
	}
	if c.Poller.Backoff <= 0 {
		errs = append(errs, errors.New("poller.backoff: must be positive"))
	}
	c.Poller.Symbols = model.NormalizeSymbols(c.Poller.Symbols)
	if len(c.Poller.Symbols) == 0 {
		errs = append(errs, errors.New("poller.symbols: empty"))
	}
	return errors.Join(errs...)
}

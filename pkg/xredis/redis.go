package xredis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"quotebridge.com/pkg/metrics"
)

type Config struct {
	Host        string
	Port        int
	DB          int
	Password    string
	DialTimeout time.Duration
	// Read/Write 超时，默认 5s（和 socket_timeout 对齐）
	IOTimeout time.Duration
}

func (c *Config) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// NewRedis 只构造 client，不做连通性检查；是否可用由调用方 Ping 判断
func NewRedis(c *Config) *redis.Client {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	io := c.IOTimeout
	if io <= 0 {
		io = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  dial,
		ReadTimeout:  io,
		WriteTimeout: io,
		// 单实例网关：一个 publisher + 探活，小池子就够
		PoolSize:     8,
		MinIdleConns: 1,
	})
	rdb.AddHook(metricsHook{})
	return rdb
}

// metricsHook 记录每条命令的耗时和错误
type metricsHook struct{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			metrics.RedisErrors.WithLabelValues("dial").Inc()
		}
		return conn, err
	}
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(cmd string, start time.Time, err error) {
	cmd = strings.ToLower(cmd)
	status := "ok"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
		metrics.RedisErrors.WithLabelValues(cmd).Inc()
	}
	metrics.RedisCmdDuration.WithLabelValues(cmd, status).Observe(time.Since(start).Seconds())
}

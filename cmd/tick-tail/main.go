// tick-tail 订阅广播出来的 tick 并逐行打印，用来排查下游收不到数据的问题。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quotebridge.com/internal/quotes/gateway"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/xredis"
)

func main() {
	driver := flag.String("driver", "redis", "broker: redis | nats")
	redisAddr := flag.String("redis-host", "localhost", "redis host")
	redisPort := flag.Int("redis-port", 6379, "redis port")
	redisDB := flag.Int("redis-db", 0, "redis db")
	natsURL := flag.String("nats", "nats://127.0.0.1:4222", "nats url")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 不传品种就订阅全部
	topics := []string{gateway.TopicPrefix + "*"}
	if flag.NArg() > 0 {
		topics = topics[:0]
		for _, s := range model.NormalizeSymbols(flag.Args()) {
			topics = append(topics, gateway.TopicFor(s))
		}
	}

	var dial gateway.Dialer
	switch *driver {
	case "redis":
		dial = gateway.RedisDialer(xredis.Config{Host: *redisAddr, Port: *redisPort, DB: *redisDB})
	case "nats":
		dial = gateway.NatsDialer(*natsURL)
	default:
		log.Fatalf("unknown driver %q", *driver)
	}

	b, err := dial(ctx)
	if err != nil {
		log.Fatalf("dial %s: %v", *driver, err)
	}
	defer b.Close()
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err = b.Ping(pctx)
	cancel()
	if err != nil {
		log.Fatalf("ping %s: %v", *driver, err)
	}

	log.Printf("tailing %v", topics)
	err = gateway.Tail(ctx, b, topics, func(topic string, q model.Quote) {
		fmt.Fprintf(os.Stdout, "%s %s bid=%v ask=%v last=%v vol=%d\n",
			time.UnixMilli(q.TimeMsc).UTC().Format("15:04:05.000"), topic, q.Bid, q.Ask, q.Last, q.Volume)
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("tail: %v", err)
	}
}

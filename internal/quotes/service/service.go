package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"quotebridge.com/internal/quotes/feed"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/metrics"
	"quotebridge.com/pkg/xerr"
)

type Feed interface {
	IsHealthy(ctx context.Context) bool
	FetchQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type Prober interface {
	IsHealthy(ctx context.Context) bool
}

// QuoteService 按需查询，每次都直接打到终端，不缓存
type QuoteService struct {
	feed      Feed
	broadcast Prober
}

func NewQuoteService(f Feed, broadcast Prober) *QuoteService {
	return &QuoteService{feed: f, broadcast: broadcast}
}

func (s *QuoteService) GetLatestQuote(ctx context.Context, symbol string) (model.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return model.Quote{}, xerr.ErrSymbolUnavailable
	}
	q, err := s.feed.FetchQuote(ctx, symbol)
	metrics.FetchTotal.WithLabelValues("on_demand", feed.ResultLabel(err)).Inc()
	return q, err
}

type Health struct {
	FeedConnected      bool
	BroadcastConnected bool
}

// Health 两个依赖并发探测
func (s *QuoteService) Health(ctx context.Context) Health {
	var h Health
	var g errgroup.Group
	g.Go(func() error {
		h.FeedConnected = s.feed.IsHealthy(ctx)
		return nil
	})
	g.Go(func() error {
		h.BroadcastConnected = s.broadcast.IsHealthy(ctx)
		return nil
	})
	_ = g.Wait()
	return h
}

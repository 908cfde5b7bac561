package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/xerr"
)

type stubFeed struct {
	healthy bool
	calls   []string
	err     error
}

func (s *stubFeed) IsHealthy(ctx context.Context) bool { return s.healthy }

func (s *stubFeed) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	s.calls = append(s.calls, symbol)
	if s.err != nil {
		return model.Quote{}, s.err
	}
	return model.Quote{Time: 1000, Bid: 1.1, Ask: 1.1002}, nil
}

type stubProber bool

func (p stubProber) IsHealthy(ctx context.Context) bool { return bool(p) }

func TestGetLatestQuote_LiveEveryCall(t *testing.T) {
	f := &stubFeed{healthy: true}
	s := NewQuoteService(f, stubProber(true))

	for i := 0; i < 3; i++ {
		q, err := s.GetLatestQuote(context.Background(), " EURUSD ")
		require.NoError(t, err)
		assert.Equal(t, 1.1, q.Bid)
	}
	assert.Equal(t, []string{"EURUSD", "EURUSD", "EURUSD"}, f.calls)
}

func TestGetLatestQuote_EmptySymbol(t *testing.T) {
	f := &stubFeed{healthy: true}
	s := NewQuoteService(f, stubProber(true))

	_, err := s.GetLatestQuote(context.Background(), "  ")
	assert.ErrorIs(t, err, xerr.ErrSymbolUnavailable)
	assert.Empty(t, f.calls)
}

func TestGetLatestQuote_PropagatesError(t *testing.T) {
	s := NewQuoteService(&stubFeed{err: xerr.ErrNotConnected}, stubProber(true))
	_, err := s.GetLatestQuote(context.Background(), "EURUSD")
	assert.ErrorIs(t, err, xerr.ErrNotConnected)
}

func TestHealth(t *testing.T) {
	s := NewQuoteService(&stubFeed{healthy: true}, stubProber(false))
	assert.Equal(t, Health{FeedConnected: true, BroadcastConnected: false}, s.Health(context.Background()))
}

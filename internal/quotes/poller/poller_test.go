package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quotebridge.com/internal/quotes/gateway"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/xerr"
)

type fakeFeed struct {
	mu         sync.Mutex
	healthy    bool
	connectErr error
	connects   int
	fetched    []string
	fail       map[string]error
	panicOn    string
}

func (f *fakeFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr == nil {
		f.healthy = true
	}
	return f.connectErr
}

func (f *fakeFeed) IsHealthy(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeFeed) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, symbol)
	if symbol == f.panicOn {
		panic("terminal handle nil")
	}
	if err := f.fail[symbol]; err != nil {
		return model.Quote{}, err
	}
	return model.Quote{Time: 1000, Bid: 1.1, Ask: 1.1002, TimeMsc: 1000000}, nil
}

type fakeBroadcast struct {
	mu        sync.Mutex
	healthy   bool
	connects  int
	failTopic string
	topics    []string
}

func (b *fakeBroadcast) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	return errors.New("connection refused")
}

func (b *fakeBroadcast) IsHealthy(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

func (b *fakeBroadcast) Publish(ctx context.Context, topic string, q model.Quote) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return topic != b.failTopic
}

var symbols = []string{"EURUSD", "GBPUSD", "USDJPY"}

func TestRunCycle_SweepsInOrder(t *testing.T) {
	f := &fakeFeed{healthy: true}
	b := &fakeBroadcast{healthy: true}
	l := New(f, b, symbols)

	assert.Equal(t, DefaultInterval, l.RunCycle(context.Background()))
	assert.Equal(t, symbols, f.fetched)
	assert.Equal(t, []string{
		"market_data:ticks:EURUSD",
		"market_data:ticks:GBPUSD",
		"market_data:ticks:USDJPY",
	}, b.topics)
}

func TestRunCycle_NoCrossSymbolAbort(t *testing.T) {
	f := &fakeFeed{healthy: true, fail: map[string]error{
		"GBPUSD": xerr.ErrSymbolUnavailable,
	}}
	b := &fakeBroadcast{healthy: true}
	l := New(f, b, symbols)

	l.RunCycle(context.Background())
	assert.Equal(t, symbols, f.fetched)
	assert.Equal(t, []string{"market_data:ticks:EURUSD", "market_data:ticks:USDJPY"}, b.topics)
}

func TestRunCycle_PublishFailureContinues(t *testing.T) {
	f := &fakeFeed{healthy: true}
	b := &fakeBroadcast{healthy: true, failTopic: gateway.TopicFor("EURUSD")}
	l := New(f, b, symbols)

	assert.Equal(t, DefaultInterval, l.RunCycle(context.Background()))
	assert.Len(t, b.topics, 3)
}

func TestRunCycle_FeedDownBacksOff(t *testing.T) {
	f := &fakeFeed{connectErr: errors.New("terminal not running")}
	b := &fakeBroadcast{healthy: true}
	l := New(f, b, symbols)

	assert.Equal(t, DefaultBackoff, l.RunCycle(context.Background()))
	assert.Empty(t, f.fetched)
	assert.Empty(t, b.topics)
	assert.Equal(t, 1, f.connects)
}

func TestRunCycle_BroadcastDownBacksOff(t *testing.T) {
	f := &fakeFeed{healthy: true}
	b := &fakeBroadcast{}
	l := New(f, b, symbols, WithBackoff(3*time.Second))

	assert.Equal(t, 3*time.Second, l.RunCycle(context.Background()))
	assert.Empty(t, f.fetched, "no fetch while broadcast is down")
	assert.Equal(t, 1, b.connects)
}

func TestRunCycle_ReconnectDisabled(t *testing.T) {
	f := &fakeFeed{}
	l := New(f, &fakeBroadcast{healthy: true}, symbols, WithReconnect(false))

	l.RunCycle(context.Background())
	assert.Equal(t, 0, f.connects)
}

func TestRunCycle_FeedRecovers(t *testing.T) {
	f := &fakeFeed{}
	b := &fakeBroadcast{healthy: true}
	l := New(f, b, symbols)

	assert.Equal(t, DefaultBackoff, l.RunCycle(context.Background()))
	// 上一轮重连成功，这一轮正常
	assert.Equal(t, DefaultInterval, l.RunCycle(context.Background()))
	assert.Equal(t, symbols, f.fetched)
}

func TestRunCycle_PanicRecovered(t *testing.T) {
	f := &fakeFeed{healthy: true, panicOn: "GBPUSD"}
	l := New(f, &fakeBroadcast{healthy: true}, symbols)

	var wait time.Duration
	assert.NotPanics(t, func() { wait = l.RunCycle(context.Background()) })
	assert.Equal(t, DefaultBackoff, wait)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := &fakeFeed{healthy: true}
	b := &fakeBroadcast{healthy: true}

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	l := New(f, b, symbols, WithSleeper(func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}))

	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval, DefaultInterval}, sleeps)
	assert.Len(t, f.fetched, 9)
}

func TestRun_SleepIsCancellable(t *testing.T) {
	l := New(&fakeFeed{}, &fakeBroadcast{}, symbols, WithReconnect(false), WithBackoff(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestNew_NormalizesSymbols(t *testing.T) {
	l := New(&fakeFeed{}, &fakeBroadcast{}, []string{"EURUSD", " EURUSD", ""})
	assert.Equal(t, []string{"EURUSD"}, l.Symbols())
}

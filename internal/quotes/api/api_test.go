package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/internal/quotes/service"
	"quotebridge.com/pkg/xerr"
)

type stubService struct {
	quote  model.Quote
	err    error
	health service.Health
	panic  bool
}

func (s *stubService) GetLatestQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if s.panic {
		panic("boom")
	}
	return s.quote, s.err
}

func (s *stubService) Health(ctx context.Context) service.Health { return s.health }

func newTestRouter(t *testing.T, svc QuoteService, opt Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, opt, NewHandler(svc))
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &stubService{health: service.Health{FeedConnected: true}}, Options{ServiceName: "market-data"})

	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","mt5_connected":true,"broadcast_connected":false}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestTick_OK(t *testing.T) {
	svc := &stubService{quote: model.Quote{Time: 1000, Bid: 1.1, Ask: 1.1002, TimeMsc: 1000000}}
	r := newTestRouter(t, svc, Options{})

	w := get(r, "/tick/EURUSD")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"time":1000,"bid":1.1,"ask":1.1002,"last":0,"volume":0,"time_msc":1000000,"flags":0,"volume_real":0}`,
		w.Body.String())
}

func TestTick_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{fmt.Errorf("%w: XAUUSD", xerr.ErrNoData), http.StatusNotFound, `{"code":404,"message":"not found","data":null}`},
		{xerr.ErrSymbolUnavailable, http.StatusNotFound, `{"code":404,"message":"not found","data":null}`},
		{xerr.ErrNotConnected, http.StatusServiceUnavailable, `{"code":503,"message":"upstream unavailable","data":null}`},
		{&xerr.ValidationError{Field: "ask", Reason: "is missing"}, http.StatusInternalServerError, `{"code":5001,"message":"invalid tick data","data":null}`},
		{errors.New("bridge 502"), http.StatusInternalServerError, `{"code":500,"message":"internal error","data":null}`},
	}
	for _, c := range cases {
		t.Run(c.err.Error(), func(t *testing.T) {
			r := newTestRouter(t, &stubService{err: c.err}, Options{})
			w := get(r, "/tick/EURUSD")
			assert.Equal(t, c.status, w.Code)
			assert.JSONEq(t, c.body, w.Body.String())
		})
	}
}

func TestTick_PanicRecovered(t *testing.T) {
	r := newTestRouter(t, &stubService{panic: true}, Options{})
	w := get(r, "/tick/EURUSD")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, &stubService{}, Options{RPS: 0.001, Burst: 1})
	require.Equal(t, http.StatusOK, get(r, "/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/health").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubService{}, Options{})
	get(r, "/health")
	w := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

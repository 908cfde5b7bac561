package mt5bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/sling"
	"github.com/segmentio/encoding/json"
	"quotebridge.com/internal/quotes/feed"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/pkg/ratelimit"
	"quotebridge.com/pkg/xerr"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker ratelimit.Rule
}

// Client 通过 HTTP 桥访问 MetaTrader 终端，实现 feed.Terminal。
// 品种相关调用走熔断器；TerminalInfo 是健康探测，不走熔断。
type Client struct {
	sling    *sling.Sling
	breakers *ratelimit.Manager
}

var _ feed.Terminal = (*Client)(nil)

// apiError bridge 非 2xx 时的响应体
type apiError struct {
	Error string `json:"error"`
}

type statusError struct {
	op     string
	status int
	msg    string
}

func (e *statusError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("mt5bridge %s: %d %s", e.op, e.status, http.StatusText(e.status))
	}
	return fmt.Sprintf("mt5bridge %s: %d %s", e.op, e.status, e.msg)
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/") + "/"
	s := sling.New().Client(httpClient).Base(base).
		Set("Accept", "application/json").
		ResponseDecoder(numberDecoder{})

	return &Client{
		sling: s,
		breakers: ratelimit.NewManager(cfg.Breaker, func(err error) bool {
			// 调用方取消不算下游故障
			return err == nil || errors.Is(err, context.Canceled)
		}),
	}
}

// numberDecoder 数字保留为 json.Number，交给 model.NewQuote 判断整数/浮点
type numberDecoder struct{}

func (numberDecoder) Decode(resp *http.Response, v interface{}) error {
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// do 发请求；返回状态码，2xx 时 body 解到 success
func (c *Client) do(ctx context.Context, op string, s *sling.Sling, success interface{}) (int, error) {
	req, err := s.Request()
	if err != nil {
		return 0, fmt.Errorf("mt5bridge %s: build request: %w", op, err)
	}
	failure := new(apiError)
	resp, err := s.Do(req.WithContext(ctx), success, failure)
	if resp == nil {
		return 0, fmt.Errorf("mt5bridge %s: %w", op, err)
	}
	// 非 2xx 的 body 不一定是 JSON，解码失败忽略
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &statusError{op: op, status: resp.StatusCode, msg: failure.Error}
	}
	if err != nil {
		return resp.StatusCode, fmt.Errorf("mt5bridge %s: decode: %w", op, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) guarded(op string, fn func() error) error {
	err := c.breakers.Do(op, fn)
	if ratelimit.IsRejected(err) {
		return fmt.Errorf("%w: mt5bridge %s: %w", xerr.ErrNotConnected, op, err)
	}
	return err
}

func (c *Client) Initialize(ctx context.Context) error {
	status, err := c.do(ctx, "initialize", c.sling.New().Post("initialize"), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &statusError{op: "initialize", status: status}
	}
	return nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.do(ctx, "shutdown", c.sling.New().Post("shutdown"), nil)
	return err
}

func (c *Client) TerminalInfo(ctx context.Context) (feed.TerminalInfo, error) {
	var info feed.TerminalInfo
	status, err := c.do(ctx, "terminal_info", c.sling.New().Get("terminal_info"), &info)
	if err != nil {
		return feed.TerminalInfo{}, err
	}
	if status == http.StatusNotFound {
		return feed.TerminalInfo{}, &statusError{op: "terminal_info", status: status}
	}
	return info, nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (feed.SymbolInfo, bool, error) {
	var (
		info   feed.SymbolInfo
		status int
	)
	err := c.guarded("symbol_info", func() (err error) {
		status, err = c.do(ctx, "symbol_info", c.sling.New().Get("symbol_info/"+url.PathEscape(symbol)), &info)
		return err
	})
	if err != nil {
		return feed.SymbolInfo{}, false, err
	}
	if status == http.StatusNotFound {
		return feed.SymbolInfo{}, false, nil
	}
	return info, true, nil
}

type selectRequest struct {
	Symbol string `json:"symbol"`
	Enable bool   `json:"enable"`
}

type selectResponse struct {
	Selected bool `json:"selected"`
}

func (c *Client) SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error) {
	var out selectResponse
	err := c.guarded("symbol_select", func() error {
		status, err := c.do(ctx, "symbol_select",
			c.sling.New().Post("symbol_select").BodyJSON(selectRequest{Symbol: symbol, Enable: enable}), &out)
		if err == nil && status == http.StatusNotFound {
			out.Selected = false
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return out.Selected, nil
}

func (c *Client) SymbolInfoTick(ctx context.Context, symbol string) (model.RawTick, bool, error) {
	var (
		raw    model.RawTick
		status int
	)
	err := c.guarded("symbol_info_tick", func() (err error) {
		status, err = c.do(ctx, "symbol_info_tick", c.sling.New().Get("symbol_info_tick/"+url.PathEscape(symbol)), &raw)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound || raw == nil {
		return nil, false, nil
	}
	return raw, true, nil
}

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"quotebridge.com/internal/quotes/model"
	"quotebridge.com/internal/quotes/service"
	"quotebridge.com/pkg/common"
	"quotebridge.com/pkg/logger"
)

// QuoteService handler 依赖的查询能力（service.QuoteService）
type QuoteService interface {
	GetLatestQuote(ctx context.Context, symbol string) (model.Quote, error)
	Health(ctx context.Context) service.Health
}

type Handler struct {
	svc QuoteService
}

func NewHandler(svc QuoteService) *Handler {
	return &Handler{svc: svc}
}

type healthResp struct {
	Status             string `json:"status"`
	MT5Connected       bool   `json:"mt5_connected"`
	BroadcastConnected bool   `json:"broadcast_connected"`
}

// Health 进程活着就返回 200，依赖状态放在 body 里
func (h *Handler) Health(c *gin.Context) {
	st := h.svc.Health(c.Request.Context())
	c.JSON(http.StatusOK, healthResp{
		Status:             "ok",
		MT5Connected:       st.FeedConnected,
		BroadcastConnected: st.BroadcastConnected,
	})
}

// Tick 直接返回 Quote 本身（不包 envelope），错误走统一 envelope
func (h *Handler) Tick(c *gin.Context) {
	symbol := c.Param("symbol")
	logger.Debug(c, "tick requested", zap.String("symbol", symbol))

	q, err := h.svc.GetLatestQuote(c.Request.Context(), symbol)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"quotebridge.com/pkg/logger"
	"quotebridge.com/pkg/xerr"
)

// 定义http错误返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr 领域错误 -> HTTP 状态 + biz code；对外只回固定文案，原始 err 只进日志
func FailErr(c *gin.Context, err error) {
	ce := xerr.FromError(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", ce.Code),
		zap.Error(err),
	}
	if ce.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c, "http error", fields...)
	} else {
		logger.Warn(c, "http error", fields...)
	}
	Fail(c, ce.HTTPStatus, ce.Code, ce.Msg)
}

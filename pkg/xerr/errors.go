package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	RecordNotFound     = 404
	ServiceUnavailable = 503
	ValidationFailed   = 5001
)

type CodeError struct {
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
	HTTPStatus int    `json:"-"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg, HTTPStatus: httpStatusOf(code)}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code), HTTPStatus: httpStatusOf(code)}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "internal error"
	case RequestParamsError:
		return "bad request"
	case RecordNotFound:
		return "not found"
	case ServiceUnavailable:
		return "upstream unavailable"
	case ValidationFailed:
		return "invalid tick data"
	default:
		return "unknown error"
	}
}

func httpStatusOf(code int) int {
	switch code {
	case OK:
		return http.StatusOK
	case RequestParamsError:
		return http.StatusBadRequest
	case RecordNotFound:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError 把领域错误翻译成对外的 CodeError（API 层使用）
func FromError(err error) *CodeError {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	var code int
	switch {
	case errors.Is(err, ErrNoData), errors.Is(err, ErrSymbolUnavailable):
		code = RecordNotFound
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrConnect):
		code = ServiceUnavailable
	case errors.Is(err, ErrValidation):
		code = ValidationFailed
	default:
		code = ServerCommonError
	}
	return &CodeError{Code: code, Msg: MapErrMsg(code), HTTPStatus: httpStatusOf(code)}
}

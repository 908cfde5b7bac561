package xerr

import (
	"errors"
	"fmt"
)

var (
	ErrConnect           = errors.New("connect failed")
	ErrNotConnected      = errors.New("not connected")
	ErrSymbolUnavailable = errors.New("symbol unavailable")
	ErrNoData            = errors.New("no data")
	ErrValidation        = errors.New("validation failed")
)

// ConnectError 依赖（feed / broadcast）握手失败
type ConnectError struct {
	Dep string
	Err error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: connect failed", e.Dep)
	}
	return fmt.Sprintf("%s: connect failed: %v", e.Dep, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnect }

// ValidationError 上游数据不符合 Quote 结构
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %q %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"quotebridge.com/pkg/logger"
)

// PanicError 把 recover 到的 panic 包装成 error
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Run 同步执行 fn，panic 转成 *PanicError 返回并记日志
func Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error(ctx, "panic recovered",
				zap.Any("panic", r),
				zap.ByteString("stack", pe.Stack),
			)
			err = pe
		}
	}()
	return fn(ctx)
}

// GoCtx 安全启动携带 context 的协程，panic 只记日志不扩散
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_ = Run(ctx, func(ctx context.Context) error {
			fn(ctx)
			return nil
		})
	}()
}

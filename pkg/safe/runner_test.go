package safe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PanicBecomesError(t *testing.T) {
	err := Run(context.Background(), func(ctx context.Context) error {
		panic("terminal handle nil")
	})
	require.Error(t, err)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "terminal handle nil", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestRun_PassThrough(t *testing.T) {
	want := errors.New("plain")
	assert.Equal(t, want, Run(context.Background(), func(ctx context.Context) error { return want }))
	assert.NoError(t, Run(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestGoCtx_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	GoCtx(context.Background(), func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

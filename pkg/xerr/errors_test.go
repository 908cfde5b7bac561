package xerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError_Mapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		status int
	}{
		{"no_data", fmt.Errorf("EURUSD: %w", ErrNoData), RecordNotFound, http.StatusNotFound},
		{"symbol", ErrSymbolUnavailable, RecordNotFound, http.StatusNotFound},
		{"not_connected", ErrNotConnected, ServiceUnavailable, http.StatusServiceUnavailable},
		{"validation", &ValidationError{Field: "bid", Reason: "missing"}, ValidationFailed, http.StatusInternalServerError},
		{"other", errors.New("boom"), ServerCommonError, http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ce := FromError(c.err)
			assert.Equal(t, c.code, ce.Code)
			assert.Equal(t, c.status, ce.HTTPStatus)
		})
	}
	assert.Nil(t, FromError(nil))
}

func TestConnectError_Is(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("startup: %w", &ConnectError{Dep: "broadcast", Err: cause})

	assert.True(t, errors.Is(err, ErrConnect))
	assert.True(t, errors.Is(err, cause))

	var ce *ConnectError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "broadcast", ce.Dep)
}

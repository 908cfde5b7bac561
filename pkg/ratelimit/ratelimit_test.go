package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestStore_AllowBurstPerKey(t *testing.T) {
	s := NewStore(rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, s.Allow("1.2.3.4:/tick/:symbol"))
	assert.True(t, s.Allow("1.2.3.4:/tick/:symbol"))
	assert.False(t, s.Allow("1.2.3.4:/tick/:symbol"), "burst 用完应该被拒")

	// 不同 key 互不影响
	assert.True(t, s.Allow("5.6.7.8:/tick/:symbol"))
	assert.Equal(t, 2, s.Len())
}

func TestStore_CleanupExpired(t *testing.T) {
	s := NewStore(rate.Inf, 1, time.Minute)
	s.Allow("a")
	s.Allow("b")

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, s.Len())
}

var errBusiness = errors.New("symbol not found")

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 3, Timeout: time.Hour}, func(err error) bool {
		return err == nil || errors.Is(err, errBusiness)
	})
	boom := errors.New("bridge 502")

	for i := 0; i < 3; i++ {
		err := m.Do("symbol_info_tick", func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	called := false
	err := m.Do("symbol_info_tick", func() error { called = true; return nil })
	assert.True(t, IsRejected(err))
	assert.False(t, called, "熔断打开后不应该再调用下游")

	// 另一个名字的熔断器独立
	assert.NoError(t, m.Do("symbol_info", func() error { return nil }))
}

func TestManager_BusinessErrorsDoNotTrip(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 2, Timeout: time.Hour}, func(err error) bool {
		return err == nil || errors.Is(err, errBusiness)
	})
	for i := 0; i < 5; i++ {
		err := m.Do("symbol_info", func() error { return errBusiness })
		assert.ErrorIs(t, err, errBusiness)
	}
	assert.False(t, IsRejected(m.Do("symbol_info", func() error { return nil })))
}

package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestCallerLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("disabled", func(t *testing.T) {
		var l *callerLimiter
		require.Nil(t, newCallerLimiter(0, 10))
		require.Nil(t, newCallerLimiter(1, 0))
		for i := 0; i < 100; i++ {
			require.True(t, l.allow("k", now))
		}
	})

	t.Run("burst", func(t *testing.T) {
		l := newCallerLimiter(1, 2)
		require.True(t, l.allow("a", now))
		require.True(t, l.allow("a", now))
		require.False(t, l.allow("a", now))
		require.True(t, l.allow("b", now), "callers are limited separately")
		require.True(t, l.allow("a", now.Add(time.Second)))
	})

	t.Run("idle eviction", func(t *testing.T) {
		l := newCallerLimiter(1, 1)
		require.True(t, l.allow("idle", now))

		later := now.Add(2 * limiterIdleTTL)
		for i := 0; i < 511; i++ {
			l.allow("busy", later)
		}
		_, ok := l.byKey["idle"]
		require.False(t, ok)
		_, ok = l.byKey["busy"]
		require.True(t, ok)
	})
}

func TestLimiterKeys(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/tokens", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	require.Equal(t, "ip:192.0.2.1", hostKey(r))

	r.RemoteAddr = "192.0.2.1"
	require.Equal(t, "ip:192.0.2.1", hostKey(r))

	r.RemoteAddr = ""
	require.Equal(t, "ip:unknown", hostKey(r))

	// claimed keys are not trusted
	r.Header.Set(HeaderKey, "02abcd")
	require.Equal(t, "ip:unknown", hostKey(r))

	require.Equal(t, "caller:"+util.Uint160{1}.StringLE(), callerKey(util.Uint160{1}))
}

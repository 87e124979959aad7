package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func serveLimited(t *testing.T, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	handler := newRateLimiter(10, 3)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		assert.Equal(t, http.StatusOK, serveLimited(t, handler, testRemoteAddr).Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, serveLimited(t, handler, testRemoteAddr).Code)

	rec := serveLimited(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
	assert.Equal(t, "rate_limited", resp["type"])
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, serveLimited(t, handler, "1.1.1.1:1").Code)
	assert.Equal(t, http.StatusOK, serveLimited(t, handler, "2.2.2.2:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, handler, "1.1.1.1:1").Code)
}

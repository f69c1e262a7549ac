package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func doRequest(mw echo.MiddlewareFunc, userID string) int {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/sync", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec.Code
}

func TestPerUser_AllowsWithinBurst(t *testing.T) {
	mw := PerUser(Config{Rate: rate.Limit(1), Burst: 2, Logger: zap.NewNop()})

	assert.Equal(t, http.StatusOK, doRequest(mw, "user-a"))
	assert.Equal(t, http.StatusOK, doRequest(mw, "user-a"))
}

func TestPerUser_BlocksBeyondBurst(t *testing.T) {
	mw := PerUser(Config{Rate: rate.Limit(0.01), Burst: 1, Logger: zap.NewNop()})

	assert.Equal(t, http.StatusOK, doRequest(mw, "user-a"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(mw, "user-a"))
}

func TestPerUser_KeysAreIndependent(t *testing.T) {
	mw := PerUser(Config{Rate: rate.Limit(0.01), Burst: 1, Logger: zap.NewNop()})

	assert.Equal(t, http.StatusOK, doRequest(mw, "user-a"))
	assert.Equal(t, http.StatusOK, doRequest(mw, "user-b"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(mw, "user-a"))
}

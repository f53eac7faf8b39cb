package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(name string) Check {
	return NewCheckFunc(name, func(context.Context) error { return nil })
}

func failing(name string) Check {
	return NewCheckFunc(name, func(context.Context) error { return errors.New("down") })
}

func TestCheckerReadiness(t *testing.T) {
	c := New()
	c.AddReadinessCheck(ok("store"))

	status, err := c.CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	require.Len(t, status.Checks, 1)
	assert.Equal(t, "store", status.Checks[0].Name)

	c.AddReadinessCheck(failing("database"))
	status, err = c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, err.Error(), "database")
}

func TestCheckerFailureThreshold(t *testing.T) {
	c := New(WithFailureThreshold(2))
	c.AddLivenessCheck(failing("flaky"))

	status, err := c.CheckLiveness(context.Background())
	require.NoError(t, err, "first failure is below the threshold")
	assert.True(t, status.Healthy)

	status, err = c.CheckLiveness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "down", status.Checks[0].Error)
}

func TestCheckerTimeout(t *testing.T) {
	c := New(WithTimeout(10 * time.Millisecond))
	c.AddReadinessCheck(NewCheckFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	status, err := c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}

func TestHTTPHandlers(t *testing.T) {
	c := New()
	c.AddLivenessCheck(ok("process"))

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Checks["process"].Status)

	c.AddReadinessCheck(failing("store"))

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.CombinedHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "error", body.Checks["store"].Status)
	assert.Equal(t, "ok", body.Checks["process"].Status)
}

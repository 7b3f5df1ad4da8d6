package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartassist/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Name() string { return f.name }
func (f fakeChecker) Ping(context.Context) error { return f.err }

func get(t *testing.T, h *HealthHandler, path string) (int, HealthResponse) {
	t.Helper()
	router := httprouter.New()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	code, resp := get(t, NewHealthHandler(logger.Discard(), fakeChecker{name: "mongo", err: errors.New("down")}), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	code, resp := get(t, NewHealthHandler(logger.Discard()), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp.Status)

	code, resp = get(t, NewHealthHandler(logger.Discard(), fakeChecker{name: "mongo"}, fakeChecker{name: "redis"}), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"mongo": "ok", "redis": "ok"}, resp.Checks)

	code, resp = get(t, NewHealthHandler(logger.Discard(), fakeChecker{name: "mongo"}, fakeChecker{name: "redis", err: errors.New("refused")}), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "error", resp.Checks["redis"])
	assert.Equal(t, "ok", resp.Checks["mongo"])
}

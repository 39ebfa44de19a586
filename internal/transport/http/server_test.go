package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/bootstrap"
	"healthshield-ai/internal/config"
	"healthshield-ai/internal/platform/logger"
)

func newMemoryApp(t *testing.T) *bootstrap.App {
	t.Helper()
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("GIN_MODE", "test")
	t.Setenv("METADATA_DRIVER", "memory")
	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("VECTOR_PROVIDER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("CORS_ORIGINS", "https://app.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := bootstrap.New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(newMemoryApp(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"app":"healthshield-ai"`)
}

func TestRouterCORSPreflight(t *testing.T) {
	router := NewRouter(newMemoryApp(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterChatWithoutAPIKeyIsServiceUnavailable(t *testing.T) {
	router := NewRouter(newMemoryApp(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"tenantId":"u1","message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

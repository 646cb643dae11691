package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attendly/internal/notifications"
	"attendly/internal/shared/config"
	"attendly/internal/shared/database"
	"attendly/internal/shared/middleware"
	"attendly/pkg/logger"
	"attendly/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		APIPrefix:  "/api",
		APIVersion: "v1",
		JWT:        config.JWTConfig{Secret: "router-test-secret"},
		Admission: config.AdmissionConfig{
			StoreDriver:       "memory",
			LockDriver:        "local",
			BoundaryTimeout:   time.Second,
			LockRetryInterval: 10 * time.Millisecond,
			AuditInterval:     time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newEngine(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, err := NewRouter(cfg, &database.DB{}, logger.Discard(), notifications.NoopDispatcher{}, metrics.New())
	require.NoError(t, err)
	t.Cleanup(r.Close)

	engine := gin.New()
	r.SetupRoutes(engine)
	return engine
}

func call(t *testing.T, engine http.Handler, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouterRejectsUnknownLockDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Admission.LockDriver = "zookeeper"
	_, err := NewRouter(cfg, &database.DB{}, logger.Discard(), notifications.NoopDispatcher{}, nil)
	assert.ErrorContains(t, err, "unknown lock driver")
}

func TestNewRouterRequiresRedisForRedisLock(t *testing.T) {
	cfg := memoryConfig()
	cfg.Admission.LockDriver = "redis"
	_, err := NewRouter(cfg, &database.DB{}, logger.Discard(), notifications.NoopDispatcher{}, nil)
	assert.Error(t, err)
}

func TestHealthRoutes(t *testing.T) {
	engine := newEngine(t, memoryConfig())

	assert.Equal(t, http.StatusOK, call(t, engine, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, engine, http.MethodGet, "/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, engine, http.MethodGet, "/status", "", nil).Code)
}

func TestEventEditPromotesThroughWiredListener(t *testing.T) {
	cfg := memoryConfig()
	engine := newEngine(t, cfg)

	admin, err := middleware.IssueAccessToken(cfg.JWT.Secret, uuid.NewString(), "admin@example.com", "Admin", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := call(t, engine, http.MethodPost, "/api/v1/admin/events", admin, map[string]interface{}{
		"name":                  "Go meetup",
		"starts_at":             time.Now().Add(time.Hour),
		"capacity":              1,
		"waitlist_enabled":      true,
		"waitlist_auto_promote": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	eventID := created.Data.ID

	for _, want := range []int{http.StatusCreated, http.StatusAccepted} {
		user, err := middleware.IssueAccessToken(cfg.JWT.Secret, uuid.NewString(), "user@example.com", "User", middleware.RoleUser, time.Hour)
		require.NoError(t, err)
		w = call(t, engine, http.MethodPost, "/api/v1/events/"+eventID+"/registrations", user, nil)
		require.Equal(t, want, w.Code, w.Body.String())
	}

	w = call(t, engine, http.MethodPatch, "/api/v1/admin/events/"+eventID, admin, map[string]interface{}{"capacity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Data struct {
			Promoted int `json:"promoted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 1, updated.Data.Promoted)

	w = call(t, engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `trigger="capacity_change"`), "promotion metric exported")
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendly/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", JWTAuthWithConfig(cfg), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	r.GET("/admin", JWTAuthWithConfig(cfg), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newEngine()
	userID := uuid.New()

	valid, err := IssueAccessToken(testSecret, userID.String(), "a@example.com", "A", RoleUser, time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueAccessToken("other", userID.String(), "a@example.com", "A", RoleUser, time.Minute)
	require.NoError(t, err)
	expired, err := IssueAccessToken(testSecret, userID.String(), "a@example.com", "A", RoleUser, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"valid", valid, http.StatusOK},
		{"wrong key", wrongKey, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, "/me", tt.token)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
			if tt.want == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine()

	user, err := IssueAccessToken(testSecret, uuid.NewString(), "u@example.com", "", RoleUser, time.Minute)
	require.NoError(t, err)
	admin, err := IssueAccessToken(testSecret, uuid.NewString(), "a@example.com", "", RoleAdmin, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(t, r, "/admin", user).Code)
	assert.Equal(t, http.StatusNoContent, do(t, r, "/admin", admin).Code)
}

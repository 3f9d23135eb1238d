package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/generate", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	r := newRouter(CORS([]string{"http://localhost:3000"}))

	w := doGet(r, "/ping", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")

	w = doGet(r, "/ping", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	r := newRouter(RateLimiter(func() (int, time.Duration) {
		return 2, time.Minute
	}))

	assert.Equal(t, http.StatusOK, doGet(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/ping", nil).Code)
}

func TestRateLimiterHotReload(t *testing.T) {
	maxRequests := 1
	r := newRouter(RateLimiter(func() (int, time.Duration) {
		return maxRequests, time.Minute
	}))

	assert.Equal(t, http.StatusOK, doGet(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/ping", nil).Code)

	// 调大限流参数后旧计数作废，下一个请求按新参数放行
	maxRequests = 100
	assert.Equal(t, http.StatusOK, doGet(r, "/ping", nil).Code)
}

func TestAILimiterKeysByUser(t *testing.T) {
	userID := uint(1)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", userID) })
	r.Use(AILimiter(func() (int, time.Duration) {
		return 1, time.Minute
	}))
	r.POST("/generate", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)

	// 同一用户触顶，响应带Retry-After
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// 换一个用户不受前一个用户的配额影响
	userID = 2
	assert.Equal(t, http.StatusOK, do().Code)
}

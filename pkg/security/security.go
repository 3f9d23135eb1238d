package security

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 中间件 仅允许白名单中的Origin，支持Credentials
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originSet[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		// 生成接口用Retry-After提示客户端重试节奏
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		// XSS保护
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

// RateLimitSource 返回当前生效的限流参数。
// 用函数而不是固定值，配置热更新后下一个请求就按新参数限流。
type RateLimitSource func() (maxRequests int, window time.Duration)

// visitor 包装限流器和最后活跃时间，用于定期清理
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool 按key限流，限流参数变化时整体重建
type limiterPool struct {
	mu     sync.Mutex
	store  map[string]*visitor
	curMax int
	curWin time.Duration
	limits RateLimitSource
}

func newLimiterPool(limits RateLimitSource) *limiterPool {
	maxRequests, window := limits()
	p := &limiterPool{
		store:  make(map[string]*visitor),
		curMax: maxRequests,
		curWin: window,
		limits: limits,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			p.mu.Lock()
			expiry := p.curWin * 3
			if expiry < time.Minute {
				expiry = time.Minute
			}
			for key, v := range p.store {
				if time.Since(v.lastSeen) > expiry {
					delete(p.store, key)
				}
			}
			p.mu.Unlock()
		}
	}()

	return p
}

func (p *limiterPool) allow(key string) bool {
	maxRequests, window := p.limits()

	p.mu.Lock()
	if maxRequests != p.curMax || window != p.curWin {
		// 配置热更新，丢弃旧参数下的全部限流器
		p.store = make(map[string]*visitor)
		p.curMax = maxRequests
		p.curWin = window
	}

	v, exists := p.store[key]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(maxRequests)), maxRequests),
		}
		p.store[key] = v
	}
	v.lastSeen = time.Now()
	p.mu.Unlock()

	return v.limiter.Allow()
}

// RateLimiter 全局限流中间件 按IP限流，自动清理过期条目
func RateLimiter(limits RateLimitSource) gin.HandlerFunc {
	pool := newLimiterPool(limits)

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// AILimiter 内容生成接口的专用限流。每次请求背后都是一串模型调用，
// 配额按登录用户而不是IP计，未登录请求退回IP。
// 必须挂在认证中间件之后，否则拿不到用户身份。
func AILimiter(limits RateLimitSource) gin.HandlerFunc {
	pool := newLimiterPool(limits)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID := c.GetUint("user_id"); userID > 0 {
			key = fmt.Sprintf("user:%d", userID)
		}

		if !pool.allow(key) {
			_, window := limits()
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "生成请求过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}

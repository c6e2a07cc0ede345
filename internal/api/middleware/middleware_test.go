package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (s *stubLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.lastKey = key
	return s.allowed, s.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limiter    *stubLimiter
		userID     string
		wantStatus int
		wantKey    string
	}{
		{"放行", &stubLimiter{allowed: true}, "", http.StatusOK, "rate_limit:/login:ip:192.0.2.1"},
		{"超限", &stubLimiter{allowed: false}, "", http.StatusTooManyRequests, "rate_limit:/login:ip:192.0.2.1"},
		{"Redis 故障降级", &stubLimiter{err: errors.New("redis down")}, "", http.StatusOK, "rate_limit:/login:ip:192.0.2.1"},
		{"登录用户按 user_id 计数", &stubLimiter{allowed: true}, "u1", http.StatusOK, "rate_limit:/login:user:u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/login", func(c *gin.Context) {
				if tt.userID != "" {
					c.Set("user_id", tt.userID)
				}
				c.Next()
			}, RateLimit(tt.limiter, 20, time.Minute), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if tt.limiter.lastKey != tt.wantKey {
				t.Errorf("期望 key %q，实际 %q", tt.wantKey, tt.limiter.lastKey)
			}
			if tt.wantStatus == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "60" {
				t.Errorf("期望 Retry-After=60，实际 %q", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Errorf("未配置 Redis 时应放行，实际 %d", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/echo", BodyLimit(8), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	// 声明的长度超限
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}

	// 未声明长度，读取时截断
	req := httptest.NewRequest(http.MethodPost, "/echo", io.NopCloser(strings.NewReader("0123456789")))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望读取失败 413，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("ok")))
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://campus.example/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	// 预检
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://campus.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("预检期望 204，实际 %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://campus.example" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Last-Event-ID") {
		t.Error("预检应允许 Last-Event-ID")
	}

	// 非白名单
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("非白名单来源不应返回 CORS 头")
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Errorf("期望 Vary: Origin，实际 %q", w.Header().Get("Vary"))
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"沿用合法 ID", "gw-123_abc.1", true},
		{"缺失时生成", "", false},
		{"含换行时重新生成", "abc\nforged", false},
		{"过长时重新生成", strings.Repeat("a", requestIDMaxLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.incoming != "" {
				req.Header.Set(requestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got != w.Body.String() {
				t.Errorf("响应头与上下文不一致: %q vs %q", got, w.Body.String())
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("期望沿用 %q，实际 %q", tt.incoming, got)
			}
			if !tt.keep && (got == tt.incoming || len(got) != 36) {
				t.Errorf("期望生成新的 UUID，实际 %q", got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/uploads/a.png", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/x", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少 nosniff")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("非 HTTPS 请求不应设置 HSTS")
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Cross-Origin-Resource-Policy") != "cross-origin" {
		t.Error("头像应允许跨源引用")
	}
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HTTPS 请求应设置 HSTS")
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		c.Set("user_id", "u1")
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if logs.Len() != 0 {
		t.Fatalf("/health 不应记录日志，实际 %d 条", logs.Len())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条日志，实际 %d", len(entries))
	}
	e := entries[0]
	if e.Level != zap.ErrorLevel {
		t.Errorf("5xx 应记录为 Error，实际 %v", e.Level)
	}
	fields := e.ContextMap()
	if fields["user_id"] != "u1" || fields["route"] != "/fail" || fields["request_id"] == "" {
		t.Errorf("unexpected fields %v", fields)
	}
}

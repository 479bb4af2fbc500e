package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

type resolverFunc func(ctx context.Context, token string) (domain.Identity, *domain.Claims, error)

func (f resolverFunc) ResolveIdentity(ctx context.Context, token string) (domain.Identity, *domain.Claims, error) {
	return f(ctx, token)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer  abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestAuthenticate(t *testing.T) {
	want := domain.Identity{ID: uuid.New(), Role: domain.RoleNurse, Active: false}
	resolver := resolverFunc(func(_ context.Context, token string) (domain.Identity, *domain.Claims, error) {
		if token != "good" {
			return domain.Identity{}, nil, errors.New("bad token")
		}
		return want, &domain.Claims{UserID: want.ID, TokenID: "jti"}, nil
	})

	r := gin.New()
	r.GET("/", Authenticate(resolver), func(c *gin.Context) {
		id, ok := Actor(c)
		require.True(t, ok)
		claims, ok := TokenClaims(c)
		require.True(t, ok)
		assert.Equal(t, "jti", claims.TokenID)
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "active": id.Active})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"inactive accounts pass through", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequestMeta_PropagatesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestMeta())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err, "a request id is generated when none is sent")
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimiter(t *testing.T) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	limiter := NewRateLimiter("auth", rate.Every(time.Minute), 2)

	r := gin.New()
	r.GET("/", limiter.Middleware(m), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)

	w := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Buckets are per client.
	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("auth")))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter("api", rate.Limit(1), 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.reserve("a")
	require.True(t, ok)

	now = now.Add(2 * idleTTL)
	ok, _ = limiter.reserve("b")
	require.True(t, ok)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/patients/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/patients/:id", "204")))
	assert.Zero(t, testutil.ToFloat64(m.InFlightGauge))
}

func TestTracing_StartsServerSpan(t *testing.T) {
	var got trace.SpanContext
	r := gin.New()
	r.Use(RequestMeta(), Tracing("test"))
	r.GET("/ping", func(c *gin.Context) {
		got = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// The global no-op provider still carries the remote parent through.
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.TraceID().String())
}

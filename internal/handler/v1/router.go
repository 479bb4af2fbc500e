package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medcycle/config"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medcycle/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RouterDeps struct {
	// Names the tracer for request spans.
	ServiceName string
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	RateLimit   config.RateLimitConfig
	Log         *zap.Logger
}

func NewRouter(h *Handler, deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.RequestMeta(),
		middleware.Tracing(deps.ServiceName),
		middleware.Logger(deps.Log),
		middleware.Metrics(deps.Metrics),
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	apiLimiter := middleware.NewRateLimiter("api", rate.Limit(deps.RateLimit.RequestsPerSecond), deps.RateLimit.BurstSize)
	authLimiter := middleware.NewRateLimiter("auth",
		rate.Limit(float64(deps.RateLimit.AuthRequestsPerMinute)/60),
		max(deps.RateLimit.AuthRequestsPerMinute, 1),
	)
	authenticate := middleware.Authenticate(h.auth)

	api := r.Group("/api/v1", apiLimiter.Middleware(deps.Metrics))

	auth := api.Group("/auth")
	{
		public := auth.Group("", authLimiter.Middleware(deps.Metrics))
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
		public.POST("/refresh", h.Refresh)

		private := auth.Group("", authenticate)
		private.POST("/logout", h.Logout)
		private.GET("/me", h.Me)
		private.PUT("/password", h.ChangePassword)
		private.POST("/mfa/enroll", h.EnrollMFA)
		private.POST("/mfa/confirm", h.ConfirmMFA)
	}

	secured := api.Group("", authenticate)

	users := secured.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}

	patients := secured.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PATCH("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
	}

	consultations := secured.Group("/consultations")
	{
		consultations.POST("", h.CreateConsultation)
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:id", h.GetConsultation)
		consultations.PATCH("/:id", h.UpdateConsultation)
		consultations.DELETE("/:id", h.DeleteConsultation)
	}

	prescriptions := secured.Group("/prescriptions")
	{
		prescriptions.POST("", h.CreatePrescription)
		prescriptions.GET("", h.ListPrescriptions)
		prescriptions.GET("/:id", h.GetPrescription)
		prescriptions.PATCH("/:id", h.UpdatePrescription)
		prescriptions.POST("/:id/dispense", h.DispensePrescription)
		prescriptions.DELETE("/:id", h.DeletePrescription)
	}

	secured.GET("/audit-logs", h.ListAuditLogs)

	return r
}

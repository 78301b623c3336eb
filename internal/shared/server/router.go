package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/batches"
	"mailmerge-backend/internal/files"
	"mailmerge-backend/internal/services/health"
	"mailmerge-backend/internal/shared/config"
	"mailmerge-backend/internal/shared/metrics"
	"mailmerge-backend/internal/shared/server/middleware"
	"mailmerge-backend/internal/shared/server/respond"
)

const batchRateGroup = "BATCH_SUBMIT"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config        config.Config
	BatchHandler  *batches.Handler
	FileHandler   *files.Handler
	HealthService *health.Service
	// Now is the rate limiter clock; nil means time.Now.
	Now func() time.Time
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(batchRateLimit(deps)),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.HealthService == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		respond.JSON(c, http.StatusOK, deps.HealthService.Status(c.Request.Context()))
	})
	if deps.BatchHandler != nil {
		deps.BatchHandler.RegisterRoutes(api)
		deps.BatchHandler.RegisterLegacyRoutes(r)
	}
	if deps.FileHandler != nil {
		deps.FileHandler.RegisterRoutes(api)
		deps.FileHandler.RegisterLegacyRoutes(r)
	}

	return r
}

// batchRateLimit throttles batch submissions per client. Other routes pass through.
func batchRateLimit(deps RouterDeps) middleware.RateLimitConfig {
	perMinute := deps.Config.BatchRatePerMinute
	rules := map[string]middleware.RateLimitRule{}
	if perMinute > 0 {
		rules[batchRateGroup] = middleware.RateLimitRule{Rate: float64(perMinute) / 60, Burst: perMinute}
	}
	return middleware.RateLimitConfig{
		Rules:   rules,
		Limiter: middleware.NewRateLimiter(deps.Now),
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method != http.MethodPost {
				return ""
			}
			switch c.Request.URL.Path {
			case "/api/v1/batches", "/upload":
				return batchRateGroup
			}
			return ""
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

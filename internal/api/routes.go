package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/auth"
	"github.com/mautops/maintenance-gin/internal/config"
	"github.com/mautops/maintenance-gin/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *gorm.DB
	Redis     *redis.Client                // 可选
	Validator *auth.KeycloakTokenValidator // 为 nil 时不启用认证

	Records *RecordController
	Steps   *StepController
	Queries *QueryController
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.RateLimit.Enabled {
		router.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	router.Use(ErrorHandlerMiddleware())

	healthController := NewHealthController(deps.DB, deps.Redis)
	router.GET("/health", healthController.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	if deps.Validator != nil {
		v1.Use(auth.KeycloakAuthMiddleware(deps.Validator))
	}
	v1.Use(RequestContextMiddleware())
	{
		records := v1.Group("/records")
		{
			records.POST("", deps.Records.Create)
			records.GET("", deps.Queries.ListRecords)
			records.GET("/overdue", deps.Queries.ListOverdue)
			records.GET("/active", deps.Queries.ListActive)
			records.GET("/:id", deps.Records.Get)
			records.PUT("/:id", deps.Records.Update)
			records.DELETE("/:id", deps.Records.Delete)
			records.GET("/:id/steps", deps.Records.ListSteps)
			records.POST("/:id/steps", deps.Records.AddStep)
			records.GET("/:id/history", deps.Queries.GetHistory)
			records.GET("/:id/audit-logs", deps.Queries.ListRecordAuditLogs)
		}

		steps := v1.Group("/steps")
		{
			steps.GET("/:id", deps.Steps.Get)
			steps.PUT("/:id", deps.Steps.Update)
			steps.DELETE("/:id", deps.Steps.Delete)
			steps.POST("/:id/complete", deps.Steps.Complete)
			steps.POST("/:id/mark-final", deps.Steps.MarkFinal)
			steps.DELETE("/:id/mark-final", deps.Steps.UnmarkFinal)
			steps.GET("/:id/handoffs", deps.Steps.Handoffs)
			steps.GET("/:id/audit-logs", deps.Queries.ListStepAuditLogs)
		}

		v1.GET("/statistics", deps.Queries.GetStatistics)
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}

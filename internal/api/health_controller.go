package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthCheckTimeout = 5 * time.Second

// HealthController 健康检查控制器
type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthController 创建健康检查控制器,redis 为 nil 时跳过该项
func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{
		db:    db,
		redis: rdb,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	healthy := true
	checks := make(map[string]string)

	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			healthy = false
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// Redis 只承载通讯录缓存,不可用时服务仍可降级运行
	if c.redis != nil {
		if err := c.checkRedis(ctx.Request.Context()); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	}

	status, httpStatus := "healthy", http.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// checkRedis 检查 Redis 连接
func (c *HealthController) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

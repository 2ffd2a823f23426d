package container

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/maintenance-gin/internal/auth"
	"github.com/mautops/maintenance-gin/internal/config"
	"github.com/mautops/maintenance-gin/internal/contact"
	"github.com/mautops/maintenance-gin/internal/database"
	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/metrics"
	"github.com/mautops/maintenance-gin/internal/repository"
	"github.com/mautops/maintenance-gin/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、通讯录、工作流引擎和服务
type Container struct {
	cfg               *config.Config
	logger            *logrus.Logger
	db                *gorm.DB
	redis             *redis.Client
	contacts          contact.Directory
	engine            *integration.WorkflowEngine
	keycloakValidator *auth.KeycloakTokenValidator
	collector         *metrics.Collector

	auditLogSvc   service.AuditLogService
	recordSvc     service.RecordService
	stepSvc       service.StepService
	querySvc      service.QueryService
	statisticsSvc service.StatisticsService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 1. 初始化数据库（带重试机制）
	db, err := database.ConnectWithRetry(ctx, cfg.Database, logger, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{cfg: cfg, logger: logger, db: db}

	// 2. 初始化 Redis,仅在配置了地址时启用
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}

	// 3. 初始化通讯录
	c.contacts = c.newDirectory()

	// 4. 初始化工作流引擎
	c.engine = integration.NewWorkflowEngine(db, integration.EngineOptions{
		MaxRetries: cfg.Workflow.MaxRetries,
		Logger:     logger,
	})

	// 5. 初始化 Keycloak Token 验证器,未配置 issuer 时不启用认证
	if cfg.Keycloak.Issuer != "" {
		c.keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer, cfg.Keycloak.JWKSURL)
	} else {
		logger.Warn("keycloak issuer not configured, API runs without authentication")
	}

	// 6. 初始化服务
	opts := service.ServiceOptions{
		FollowUpAfter: cfg.Workflow.FollowUpAfter,
		Logger:        logger,
	}
	c.auditLogSvc = service.NewAuditLogService(repository.NewAuditLogRepository(db), c.engine)
	c.recordSvc = service.NewRecordService(c.engine, c.auditLogSvc, opts)
	c.stepSvc = service.NewStepService(c.engine, c.contacts, c.auditLogSvc, opts)
	c.querySvc = service.NewQueryService(c.engine, opts)
	c.statisticsSvc = service.NewStatisticsService(c.engine, opts)

	// 7. 初始化指标采集器
	c.collector = metrics.NewCollector(db, c.engine.CountByStatus, cfg.Metrics.CollectInterval)

	return c, nil
}

// newDirectory 根据配置选择通讯录实现,并按需包装缓存
func (c *Container) newDirectory() contact.Directory {
	cfg := c.cfg.Contacts

	var dir contact.Directory
	if cfg.BaseURL != "" {
		dir = contact.NewHTTPDirectory(cfg.BaseURL, cfg.Timeout)
	} else {
		static := make([]contact.Contact, 0, len(cfg.Static))
		for _, s := range cfg.Static {
			static = append(static, contact.Contact{
				ID:          s.ID,
				DisplayName: s.DisplayName,
				Phone:       s.Phone,
				Email:       s.Email,
			})
		}
		// 静态目录在内存中,无需缓存
		return contact.NewStaticDirectory(static)
	}

	if cfg.CacheTTL <= 0 {
		return dir
	}
	var cache contact.Cache
	if cfg.CacheBackend == "redis" && c.redis != nil {
		cache = contact.NewRedisCache(c.redis, cfg.CacheTTL, c.logger)
	} else {
		cache = contact.NewMemoryCache(cfg.CacheTTL)
	}
	return contact.NewCachedDirectory(dir, cache)
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Redis 获取 Redis 客户端,未配置时为 nil
func (c *Container) Redis() *redis.Client {
	return c.redis
}

// Contacts 获取通讯录
func (c *Container) Contacts() contact.Directory {
	return c.contacts
}

// Engine 获取工作流引擎
func (c *Container) Engine() *integration.WorkflowEngine {
	return c.engine
}

// KeycloakValidator 获取 Keycloak Token 验证器,未启用认证时为 nil
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// Collector 获取指标采集器
func (c *Container) Collector() *metrics.Collector {
	return c.collector
}

// RecordService 获取维修记录服务
func (c *Container) RecordService() service.RecordService {
	return c.recordSvc
}

// StepService 获取维修步骤服务
func (c *Container) StepService() service.StepService {
	return c.stepSvc
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.querySvc
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsSvc
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	c.collector.Stop()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	database.Close(c.db)
	return nil
}

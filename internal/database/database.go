package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mautops/maintenance-gin/internal/config"
	"github.com/mautops/maintenance-gin/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// GetPoolConfig 根据配置计算连接池参数,未设置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) PoolConfig {
	pool := PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.ConnMaxIdleTime = time.Duration(cfg.ConnMaxIdleTime) * time.Second
	}

	// SQLite 只允许单个写连接
	if cfg.Driver == "sqlite" {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}
	return pool
}

// dialector 根据驱动选择 gorm dialector
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(cfg.Path + "?_busy_timeout=5000&_foreign_keys=1"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: newGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接,间隔指数退避
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := Connect(cfg, log)
		if err == nil {
			if err = ping(ctx, db); err == nil {
				return db, nil
			}
			Close(db)
		}
		lastErr = err

		if i < maxRetries-1 {
			if log != nil {
				log.WithError(err).WithField("attempt", i+1).Warn("database connection failed, retrying")
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
			retryInterval *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, lastErr)
}

// Models 返回需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&model.MaintenanceRecordModel{},
		&model.MaintenanceStepModel{},
		&model.HandoffEventModel{},
		&model.StateHistoryModel{},
		&model.AuditLogModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes 创建 gorm 标签之外的组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		// 记录内步骤按插入顺序读取,序号不可重复
		{"idx_steps_record_sequence", "CREATE UNIQUE INDEX IF NOT EXISTS idx_steps_record_sequence ON maintenance_steps(record_id, sequence)"},
		{"idx_steps_open_due", "CREATE INDEX IF NOT EXISTS idx_steps_open_due ON maintenance_steps(is_completed, expected_end_date)"},
		{"idx_history_record_created", "CREATE INDEX IF NOT EXISTS idx_history_record_created ON state_history(record_id, created_at, id)"},
		{"idx_handoffs_step_created", "CREATE INDEX IF NOT EXISTS idx_handoffs_step_created ON handoff_events(step_id, created_at, id)"},
		{"idx_audit_record_created", "CREATE INDEX IF NOT EXISTS idx_audit_record_created ON maintenance_audit_logs(record_id, created_at, id)"},
		{"idx_audit_step_created", "CREATE INDEX IF NOT EXISTS idx_audit_step_created ON maintenance_audit_logs(step_id, created_at, id)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	// PostgreSQL 部分索引: 只索引未关闭的记录
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_records_open ON maintenance_records(equipment_id) WHERE actual_completion_date IS NULL").Error; err != nil {
			return fmt.Errorf("failed to create idx_records_open: %w", err)
		}
	}
	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) bool {
	if db == nil {
		return false
	}
	return ping(ctx, db) == nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// newGormLogger 将 gorm 日志接入 logrus,只输出慢查询和错误
func newGormLogger(log *logrus.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	level := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

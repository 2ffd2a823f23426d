package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 维修记录创建数
	recordsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maintenance_records_created_total",
			Help: "Total number of maintenance records created",
		},
	)

	// 维修记录关闭数
	recordsClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maintenance_records_closed_total",
			Help: "Total number of maintenance records closed by a final step",
		},
	)

	// 步骤事件数
	stepEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_step_events_total",
			Help: "Total number of step events",
		},
		[]string{"event"}, // step_created, step_completed, handoff, etc.
	)

	// 乐观锁冲突重试次数
	versionRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maintenance_version_retries_total",
			Help: "Total number of mutations retried after a record version conflict",
		},
	)

	// 联系人解析次数
	contactResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_resolutions_total",
			Help: "Total number of contact directory resolutions",
		},
		[]string{"result"}, // ok, not_found, error
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 记录状态分布
	recordsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maintenance_records_by_status",
			Help: "Number of maintenance records by derived status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(recordsCreatedTotal)
	prometheus.MustRegister(recordsClosedTotal)
	prometheus.MustRegister(stepEventsTotal)
	prometheus.MustRegister(versionRetriesTotal)
	prometheus.MustRegister(contactResolutionsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(recordsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRecordCreated 记录维修记录创建
func RecordRecordCreated() {
	recordsCreatedTotal.Inc()
}

// RecordRecordClosed 记录维修记录关闭
func RecordRecordClosed() {
	recordsClosedTotal.Inc()
}

// RecordStepEvent 记录步骤事件
func RecordStepEvent(event string) {
	stepEventsTotal.WithLabelValues(event).Inc()
}

// RecordVersionRetry 记录一次乐观锁重试
func RecordVersionRetry() {
	versionRetriesTotal.Inc()
}

// RecordContactResolution 记录联系人解析结果
func RecordContactResolution(result string) {
	contactResolutionsTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateRecordsByStatus 更新记录状态分布指标
func UpdateRecordsByStatus(counts map[string]int) {
	recordsByStatus.Reset()
	for status, count := range counts {
		recordsByStatus.WithLabelValues(status).Set(float64(count))
	}
}

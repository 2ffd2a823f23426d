package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestRecordStepEvent 测试步骤事件计数
func TestRecordStepEvent(t *testing.T) {
	before := testutil.ToFloat64(stepEventsTotal.WithLabelValues("step_completed"))
	RecordStepEvent("step_completed")
	RecordStepEvent("step_completed")
	assert.Equal(t, before+2, testutil.ToFloat64(stepEventsTotal.WithLabelValues("step_completed")))
}

// TestUpdateRecordsByStatus 测试状态分布会覆盖旧值
func TestUpdateRecordsByStatus(t *testing.T) {
	UpdateRecordsByStatus(map[string]int{"ACTIVE": 3, "OVERDUE": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(recordsByStatus.WithLabelValues("ACTIVE")))

	UpdateRecordsByStatus(map[string]int{"COMPLETED": 2})
	assert.Equal(t, 1, testutil.CollectAndCount(recordsByStatus))
}

// TestUpdateDatabaseConnections 测试数据库连接指标
func TestUpdateDatabaseConnections(t *testing.T) {
	assert.Error(t, UpdateDatabaseConnections(nil))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)

	require.NoError(t, UpdateDatabaseConnections(db))
	assert.Equal(t, 4.0, testutil.ToFloat64(databaseConnectionsMax))
}

// TestCollector_StartStop 测试收集器启停
func TestCollector_StartStop(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	called := make(chan struct{}, 1)
	counter := func(ctx context.Context) (map[string]int, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return map[string]int{"SCHEDULED": 1}, nil
	}

	c := NewCollector(db, counter, 10*time.Millisecond)
	c.Start()
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("collector did not run")
	}
	c.Stop()
}

func TestCollector_StopWithoutStart(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		NewCollector(db, nil, time.Second).Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a collector that never started")
	}
}

// TestHandler 测试指标端点
func TestHandler(t *testing.T) {
	RecordRecordCreated()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "maintenance_records_created_total"))
}

package repository_test

import (
	"testing"
	"time"

	"github.com/mautops/maintenance-gin/internal/model"
	"github.com/mautops/maintenance-gin/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建仓储测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.MaintenanceRecordModel{},
		&model.MaintenanceStepModel{},
		&model.HandoffEventModel{},
		&model.StateHistoryModel{},
		&model.AuditLogModel{},
	)
	require.NoError(t, err)

	return db
}

func testRecord(id string) *model.MaintenanceRecordModel {
	now := time.Now().UTC()
	return &model.MaintenanceRecordModel{
		ID:                      id,
		EquipmentID:             "eq-001",
		InitialIssueDescription: "液压系统漏油",
		ExpectedCompletionDate:  now.Add(72 * time.Hour),
		Version:                 1,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

func testStep(id, recordID string, seq int) *model.MaintenanceStepModel {
	now := time.Now().UTC()
	return &model.MaintenanceStepModel{
		ID:                   id,
		RecordID:             recordID,
		Sequence:             seq,
		StepType:             "REPAIR",
		Description:          "更换密封圈",
		ResponsibleContactID: "contact-001",
		FromLocation:         "车间 A",
		ToLocation:           "车间 B",
		StartDate:            now,
		ExpectedEndDate:      now.Add(time.Hour),
		Cost:                 decimal.RequireFromString("12.50"),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// TestRecordRepository_CreateAndFind 测试保存并查找记录
func TestRecordRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRecordRepository(db)

	require.NoError(t, repo.Create(testRecord("rec-001")))

	found, err := repo.FindByID("rec-001")
	require.NoError(t, err)
	assert.Equal(t, "eq-001", found.EquipmentID)
	assert.Nil(t, found.ActualCompletionDate)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestRecordRepository_UpdateWithVersion 测试乐观锁更新
func TestRecordRepository_UpdateWithVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRecordRepository(db)
	rec := testRecord("rec-001")
	require.NoError(t, repo.Create(rec))

	rec.Version = 2
	rec.FinalDescription = "已修复"
	ok, err := repo.UpdateWithVersion(rec, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// 旧版本号更新失败
	rec.Version = 3
	ok, err = repo.UpdateWithVersion(rec, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID("rec-001")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Version)
	assert.Equal(t, "已修复", found.FinalDescription)
}

// TestRecordRepository_FindByFilter 测试按条件查询记录
func TestRecordRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewRecordRepository(db)

	open := testRecord("rec-open")
	closed := testRecord("rec-closed")
	closedAt := time.Now().UTC()
	closed.ActualCompletionDate = &closedAt
	closed.EquipmentID = "eq-002"
	require.NoError(t, repo.Create(open))
	require.NoError(t, repo.Create(closed))

	isClosed := false
	records, err := repo.FindByFilter(&repository.RecordFilter{Closed: &isClosed})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-open", records[0].ID)

	equipment := "eq-002"
	records, err = repo.FindByFilter(&repository.RecordFilter{EquipmentID: &equipment})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-closed", records[0].ID)

	records, err = repo.FindByFilter(nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// TestStepRepository_Ordering 测试步骤按插入顺序返回
func TestStepRepository_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewStepRepository(db)

	require.NoError(t, repo.Save(testStep("step-c", "rec-001", 3)))
	require.NoError(t, repo.Save(testStep("step-a", "rec-001", 1)))
	require.NoError(t, repo.Save(testStep("step-b", "rec-001", 2)))
	require.NoError(t, repo.Save(testStep("step-x", "rec-002", 1)))

	steps, err := repo.FindByRecordID("rec-001")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "step-a", steps[0].ID)
	assert.Equal(t, "step-b", steps[1].ID)
	assert.Equal(t, "step-c", steps[2].ID)
	assert.True(t, steps[0].Cost.Equal(decimal.RequireFromString("12.5")))

	count, err := repo.CountByRecordID("rec-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	all, err := repo.FindByRecordIDs([]string{"rec-001", "rec-002"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := repo.FindByRecordIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.Delete("step-b"))
	count, err = repo.CountByRecordID("rec-001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// TestHandoffRepository_FindByStepID 测试查找交接记录
func TestHandoffRepository_FindByStepID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewHandoffRepository(db)

	base := time.Now().UTC()
	for i, to := range []string{"contact-002", "contact-003"} {
		err := repo.Save(&model.HandoffEventModel{
			ID:            "handoff-00" + string(rune('1'+i)),
			RecordID:      "rec-001",
			StepID:        "step-001",
			FromContactID: "contact-001",
			ToContactID:   to,
			Operator:      "user-001",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := repo.FindByStepID("step-001")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "contact-002", events[0].ToContactID)
	assert.Equal(t, "contact-003", events[1].ToContactID)
}

// TestStateHistoryRepository_FindByRecordID 测试根据记录 ID 查找状态历史
func TestStateHistoryRepository_FindByRecordID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewStateHistoryRepository(db)

	transitions := []struct {
		event string
		from  string
		to    string
	}{
		{"step_created", "", "ACTIVE"},
		{"step_completed", "ACTIVE", "COMPLETED"},
		{"record_closed", "OPEN", "COMPLETED"},
	}

	for i, tr := range transitions {
		err := repo.Save(&model.StateHistoryModel{
			ID:        "history-00" + string(rune('1'+i)),
			RecordID:  "rec-001",
			StepID:    "step-001",
			Event:     tr.event,
			FromState: tr.from,
			ToState:   tr.to,
			Operator:  "user-001",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	histories, err := repo.FindByRecordID("rec-001")
	require.NoError(t, err)
	require.Len(t, histories, 3)
	assert.Equal(t, "record_closed", histories[2].Event)
}

// TestAuditLogRepository_ListByRecord 测试按记录和步骤分页查询审计日志
func TestAuditLogRepository_ListByRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAuditLogRepository(db)

	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	entries := []struct {
		id, stepID, action string
	}{
		{"audit-001", "", "create"},
		{"audit-002", "step-001", "create"},
		{"audit-003", "step-001", "handoff"},
		{"audit-004", "step-002", "create"},
		{"audit-005", "step-001", "complete"},
	}
	for i, e := range entries {
		require.NoError(t, repo.Save(&model.AuditLogModel{
			ID:        e.id,
			RecordID:  "rec-001",
			StepID:    e.stepID,
			Action:    e.action,
			Operator:  "user-001",
			Details:   `{}`,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "audit-099", RecordID: "rec-002", Action: "create", Operator: "user-002", CreatedAt: base,
	}))

	logs, total, err := repo.ListByRecord("rec-001", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, logs, 2)
	assert.Equal(t, "audit-001", logs[0].ID)
	assert.Equal(t, "audit-002", logs[1].ID)

	logs, total, err = repo.ListByRecord("rec-001", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "audit-005", logs[0].ID)

	logs, total, err = repo.ListByRecord("rec-001", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, logs)

	logs, total, err = repo.ListByStep("step-001", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"create", "handoff", "complete"}, []string{logs[0].Action, logs[1].Action, logs[2].Action})

	// 缺少必填字段不落库
	assert.Error(t, repo.Save(&model.AuditLogModel{ID: "audit-bad", Action: "create", Operator: "user-001"}))
}

package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/maintenance-gin/internal/contact"
	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/model"
	"github.com/mautops/maintenance-gin/internal/repository"
	"github.com/mautops/maintenance-gin/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countingDirectory struct {
	inner contact.Directory
	calls int32
}

func (d *countingDirectory) Resolve(ctx context.Context, id string) (*contact.Contact, error) {
	atomic.AddInt32(&d.calls, 1)
	return d.inner.Resolve(ctx, id)
}

type fixture struct {
	now       time.Time
	records   service.RecordService
	steps     service.StepService
	queries   service.QueryService
	stats     service.StatisticsService
	audits    service.AuditLogService
	directory *countingDirectory
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// setupFixture 创建服务层测试环境
func setupFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.MaintenanceRecordModel{},
		&model.MaintenanceStepModel{},
		&model.HandoffEventModel{},
		&model.StateHistoryModel{},
		&model.AuditLogModel{},
	))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	f := &fixture{now: day(9)}
	engine := integration.NewWorkflowEngine(db, integration.EngineOptions{
		Clock:  func() time.Time { return f.now },
		Logger: log,
	})
	f.directory = &countingDirectory{inner: contact.NewStaticDirectory([]contact.Contact{
		{ID: "contact-001", DisplayName: "张工", Phone: "13800000001"},
		{ID: "contact-002", DisplayName: "李工", Email: "li@example.com"},
	})}
	opts := service.ServiceOptions{Logger: log}
	f.audits = service.NewAuditLogService(repository.NewAuditLogRepository(db), engine)
	f.records = service.NewRecordService(engine, f.audits, opts)
	f.steps = service.NewStepService(engine, f.directory, f.audits, opts)
	f.queries = service.NewQueryService(engine, opts)
	f.stats = service.NewStatisticsService(engine, opts)
	return f
}

func userContext(userID string) context.Context {
	return service.WithRequestInfo(context.Background(), service.RequestInfo{
		UserID:    userID,
		RequestID: "req-001",
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
	})
}

func stepRequest(stepType, contactID string, start, end time.Time, cost string) *service.StepRequest {
	req := &service.StepRequest{
		StepType:             stepType,
		Description:          "检查液压泵",
		ResponsibleContactID: contactID,
		FromLocation:         "车间 A",
		ToLocation:           "车间 B",
		StartDate:            start,
		ExpectedEndDate:      end,
	}
	if cost != "" {
		c := decimal.RequireFromString(cost)
		req.StepCost = &c
	}
	return req
}

func (f *fixture) createRecord(t *testing.T, ctx context.Context) *maintenance.RecordView {
	rec, err := f.records.Create(ctx, &service.CreateRecordRequest{
		EquipmentID:             "eq-001",
		InitialIssueDescription: "液压系统漏油",
		ExpectedCompletionDate:  day(20),
	})
	require.NoError(t, err)
	return rec
}

// TestStepService_AddResolvesContact 测试添加步骤时解析责任人
func TestStepService_AddResolvesContact(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")
	rec := f.createRecord(t, ctx)

	view, err := f.steps.Add(ctx, rec.ID, stepRequest("repair", "contact-001", day(10), day(12), "120.00"))
	require.NoError(t, err)
	require.Len(t, view.Steps, 1)
	assert.Equal(t, maintenance.StepTypeRepair, view.Steps[0].Type)
	assert.Equal(t, "张工", view.Steps[0].DisplayName)
	assert.Equal(t, "13800000001", view.Steps[0].Phone)
	assert.Equal(t, maintenance.RecordStatusActive, view.Status)
	assert.True(t, view.TotalCost.Equal(decimal.RequireFromString("120")))

	// 缺省费用为 0
	view, err = f.steps.Add(ctx, rec.ID, stepRequest("TESTING", "contact-002", day(12), day(13), ""))
	require.NoError(t, err)
	assert.True(t, view.Steps[1].Cost.IsZero())
	assert.Equal(t, 2, view.TotalSteps)
}

// TestStepService_AddValidation 测试添加步骤的校验错误
func TestStepService_AddValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")
	rec := f.createRecord(t, ctx)

	tests := []struct {
		name string
		req  *service.StepRequest
	}{
		{"未知联系人", stepRequest("REPAIR", "contact-404", day(10), day(12), "")},
		{"未知步骤类型", stepRequest("PAINTING", "contact-001", day(10), day(12), "")},
		{"时间倒置", stepRequest("REPAIR", "contact-001", day(12), day(10), "")},
		{"负费用", stepRequest("REPAIR", "contact-001", day(10), day(12), "-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.steps.Add(ctx, rec.ID, tt.req)
			assert.ErrorIs(t, err, maintenance.ErrValidation)
		})
	}

	loaded, err := f.records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.TotalSteps)
}

// TestStepService_UpdateHandoff 测试更换责任人
func TestStepService_UpdateHandoff(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")
	rec := f.createRecord(t, ctx)

	view, err := f.steps.Add(ctx, rec.ID, stepRequest("TRANSPORT", "contact-001", day(10), day(12), "30"))
	require.NoError(t, err)
	stepID := view.Steps[0].ID
	callsAfterAdd := atomic.LoadInt32(&f.directory.calls)

	// 责任人不变时不重新解析
	req := stepRequest("TRANSPORT", "contact-001", day(10), day(13), "30")
	_, err = f.steps.Update(ctx, stepID, req)
	require.NoError(t, err)
	assert.Equal(t, callsAfterAdd, atomic.LoadInt32(&f.directory.calls))

	req = stepRequest("TRANSPORT", "contact-002", day(10), day(13), "30")
	req.HandoffReason = "调岗"
	view, err = f.steps.Update(ctx, stepID, req)
	require.NoError(t, err)
	assert.Equal(t, "李工", view.Steps[0].DisplayName)

	handoffs, err := f.steps.Handoffs(ctx, stepID)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	assert.Equal(t, "张工", handoffs[0].From.DisplayName)
	assert.Equal(t, "李工", handoffs[0].To.DisplayName)
	assert.Equal(t, "user-001", handoffs[0].Operator)

	logs, total, err := f.audits.ListByStep(ctx, stepID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(logs)), total)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
		assert.Equal(t, "req-001", l.RequestID)
	}
	assert.Contains(t, actions, "handoff")
	assert.Contains(t, actions, "create")
}

// TestStepService_CompleteFinal 测试完成最终步骤关闭记录
func TestStepService_CompleteFinal(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")
	rec := f.createRecord(t, ctx)

	view, err := f.steps.Add(ctx, rec.ID, stepRequest("RETURN_TO_SERVICE", "contact-001", day(10), day(11), "10"))
	require.NoError(t, err)
	stepID := view.Steps[0].ID

	view, err = f.steps.MarkFinal(ctx, stepID)
	require.NoError(t, err)
	assert.Equal(t, stepID, view.FinalStepID)

	f.now = day(11)
	view, err = f.steps.Complete(ctx, stepID, &service.CompleteStepRequest{FinalDescription: "已交付使用"})
	require.NoError(t, err)
	assert.Equal(t, maintenance.RecordStatusCompleted, view.Status)
	assert.Equal(t, "已交付使用", view.FinalDescription)
	require.NotNil(t, view.ActualCompletionDate)
	assert.Equal(t, 2, view.DurationInDays)

	_, err = f.steps.Complete(ctx, stepID, nil)
	assert.ErrorIs(t, err, maintenance.ErrConflict)

	_, err = f.steps.Update(ctx, stepID, stepRequest("RETURN_TO_SERVICE", "contact-404", day(10), day(11), "10"))
	assert.ErrorIs(t, err, maintenance.ErrConflict)

	history, err := f.queries.GetHistory(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, maintenance.EventRecordClosed, history[len(history)-1].Event)
}

// TestQueryService_ListRecords 测试记录列表的过滤与分页
func TestQueryService_ListRecords(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")

	var overdueID string
	for i := 0; i < 5; i++ {
		rec := f.createRecord(t, ctx)
		if i < 2 {
			_, err := f.steps.Add(ctx, rec.ID, stepRequest("REPAIR", "contact-001", day(10), day(12), "5"))
			require.NoError(t, err)
			overdueID = rec.ID
		}
	}

	views, total, err := f.queries.ListRecords(ctx, &service.ListRecordsFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, views, 2)

	views, _, err = f.queries.ListRecords(ctx, &service.ListRecordsFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	views, _, err = f.queries.ListRecords(ctx, &service.ListRecordsFilter{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, views)

	active, err := f.queries.ListActiveRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	f.now = day(13)
	overdue, err := f.queries.ListOverdueRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, overdue, 2)
	ids := []string{overdue[0].ID, overdue[1].ID}
	assert.Contains(t, ids, overdueID)

	scheduled := maintenance.RecordStatusScheduled
	views, total, err = f.queries.ListRecords(ctx, &service.ListRecordsFilter{Status: &scheduled})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, views, 3)
}

// TestStatisticsService_GetRecordStatistics 测试统计
func TestStatisticsService_GetRecordStatistics(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")

	rec := f.createRecord(t, ctx)
	_, err := f.steps.Add(ctx, rec.ID, stepRequest("REPAIR", "contact-001", day(10), day(12), "99.90"))
	require.NoError(t, err)
	f.createRecord(t, ctx)

	f.now = day(14)
	stats, err := f.stats.GetRecordStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 1, stats.ByStatus["OVERDUE"])
	assert.Equal(t, 1, stats.ByStatus["SCHEDULED"])
	assert.Equal(t, 0, stats.ByStatus["COMPLETED"])
	assert.Equal(t, 1, stats.OverdueSteps)
	assert.Equal(t, 1, stats.StepsNeedingFollowUp)
	assert.True(t, stats.OpenCost.Equal(decimal.RequireFromString("99.9")))
}

// TestRecordService_UpdateAndDelete 测试修改与删除记录
func TestRecordService_UpdateAndDelete(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	rec := f.createRecord(t, ctx)

	issue := "  "
	_, err := f.records.Update(ctx, rec.ID, &service.UpdateRecordRequest{InitialIssueDescription: &issue})
	assert.ErrorIs(t, err, maintenance.ErrValidation)

	issue = "漏油加剧"
	view, err := f.records.Update(ctx, rec.ID, &service.UpdateRecordRequest{InitialIssueDescription: &issue})
	require.NoError(t, err)
	assert.Equal(t, "漏油加剧", view.InitialIssueDescription)

	require.NoError(t, f.records.Delete(ctx, rec.ID))
	_, err = f.records.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, maintenance.ErrNotFound)

	// 匿名操作记为 system
	// 记录删除后审计日志仍可查询
	logs, total, err := f.audits.ListByRecord(ctx, rec.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"create", "update", "delete"}, []string{logs[0].Action, logs[1].Action, logs[2].Action})
	assert.Equal(t, service.SystemOperator, logs[0].Operator)
	assert.Empty(t, logs[0].StepID)
}

// TestAuditLogService_ListByRecord 测试记录审计日志包含步骤操作并分页
func TestAuditLogService_ListByRecord(t *testing.T) {
	f := setupFixture(t)
	ctx := userContext("user-001")
	rec := f.createRecord(t, ctx)

	view, err := f.steps.Add(ctx, rec.ID, stepRequest("REPAIR", "contact-001", day(10), day(12), "10"))
	require.NoError(t, err)
	stepID := view.Steps[0].ID

	f.now = day(11)
	_, err = f.steps.MarkFinal(ctx, stepID)
	require.NoError(t, err)
	_, err = f.steps.Complete(ctx, stepID, nil)
	require.NoError(t, err)

	logs, total, err := f.audits.ListByRecord(ctx, rec.ID, &service.PageRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, logs, 2)
	assert.Equal(t, "create", logs[0].Action)
	assert.Empty(t, logs[0].StepID)
	assert.Equal(t, stepID, logs[1].StepID)
	assert.True(t, logs[0].CreatedAt.Equal(day(9)))

	logs, _, err = f.audits.ListByRecord(ctx, rec.ID, &service.PageRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "complete", logs[1].Action)
	assert.True(t, logs[1].CreatedAt.Equal(day(11)))
	assert.JSONEq(t, `{"final_step":true,"record_closed":true}`, string(logs[1].Details))

	_, _, err = f.audits.ListByRecord(ctx, "rec-missing", nil)
	assert.ErrorIs(t, err, maintenance.ErrNotFound)
	_, _, err = f.audits.ListByStep(ctx, "step-missing", nil)
	assert.ErrorIs(t, err, maintenance.ErrNotFound)
}

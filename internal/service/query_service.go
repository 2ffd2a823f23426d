package service

import (
	"context"
	"fmt"

	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/maintenance"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryService 查询服务接口
type QueryService interface {
	ListRecords(ctx context.Context, filter *ListRecordsFilter) ([]maintenance.RecordView, int64, error)
	ListOverdueRecords(ctx context.Context) ([]maintenance.RecordView, error)
	ListActiveRecords(ctx context.Context) ([]maintenance.RecordView, error)
	GetHistory(ctx context.Context, recordID string) ([]*maintenance.Transition, error)
}

// ListRecordsFilter 记录列表查询过滤器
type ListRecordsFilter struct {
	Status      *maintenance.RecordStatus
	EquipmentID *string
	Page        int
	PageSize    int
}

// Normalize 填充分页默认值
func (f *ListRecordsFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

// queryService 查询服务实现
type queryService struct {
	engine *integration.WorkflowEngine
	opts   ServiceOptions
}

// NewQueryService 创建查询服务
func NewQueryService(engine *integration.WorkflowEngine, opts ServiceOptions) QueryService {
	return &queryService{
		engine: engine,
		opts:   opts.withDefaults(),
	}
}

// ListRecords 列出记录
// 状态在查询时推导,分页在推导过滤之后进行
func (s *queryService) ListRecords(ctx context.Context, filter *ListRecordsFilter) ([]maintenance.RecordView, int64, error) {
	if filter == nil {
		filter = &ListRecordsFilter{}
	}
	filter.Normalize()

	records, err := s.engine.ListRecords(ctx, &integration.RecordQuery{
		Status:      filter.Status,
		EquipmentID: filter.EquipmentID,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}

	total := int64(len(records))
	start := (filter.Page - 1) * filter.PageSize
	if start > len(records) {
		start = len(records)
	}
	end := start + filter.PageSize
	if end > len(records) {
		end = len(records)
	}

	return s.views(records[start:end]), total, nil
}

// ListOverdueRecords 列出逾期记录
func (s *queryService) ListOverdueRecords(ctx context.Context) ([]maintenance.RecordView, error) {
	return s.listByStatus(ctx, maintenance.RecordStatusOverdue)
}

// ListActiveRecords 列出进行中的记录
func (s *queryService) ListActiveRecords(ctx context.Context) ([]maintenance.RecordView, error) {
	return s.listByStatus(ctx, maintenance.RecordStatusActive)
}

// GetHistory 获取记录的状态历史
func (s *queryService) GetHistory(ctx context.Context, recordID string) ([]*maintenance.Transition, error) {
	return s.engine.History(ctx, recordID)
}

func (s *queryService) listByStatus(ctx context.Context, status maintenance.RecordStatus) ([]maintenance.RecordView, error) {
	records, err := s.engine.ListRecords(ctx, &integration.RecordQuery{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", status, err)
	}
	return s.views(records), nil
}

func (s *queryService) views(records []*maintenance.Record) []maintenance.RecordView {
	now := s.engine.Now()
	views := make([]maintenance.RecordView, 0, len(records))
	for _, r := range records {
		views = append(views, r.View(now, s.opts.FollowUpAfter))
	}
	return views
}

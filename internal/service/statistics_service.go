package service

import (
	"context"
	"fmt"

	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/shopspring/decimal"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetRecordStatistics(ctx context.Context) (*RecordStatistics, error)
}

// RecordStatistics 维修记录统计
type RecordStatistics struct {
	TotalRecords         int             `json:"totalRecords"`
	ByStatus             map[string]int  `json:"byStatus"`
	OverdueSteps         int             `json:"overdueSteps"`
	StepsNeedingFollowUp int             `json:"stepsNeedingFollowUp"`
	OpenCost             decimal.Decimal `json:"openCost"`  // 未关闭记录的费用合计
	TotalCost            decimal.Decimal `json:"totalCost"` // 所有记录的费用合计
}

// statisticsService 统计服务实现
type statisticsService struct {
	engine *integration.WorkflowEngine
	opts   ServiceOptions
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(engine *integration.WorkflowEngine, opts ServiceOptions) StatisticsService {
	return &statisticsService{engine: engine, opts: opts.withDefaults()}
}

// GetRecordStatistics 按当前时间统计记录状态与费用
func (s *statisticsService) GetRecordStatistics(ctx context.Context) (*RecordStatistics, error) {
	records, err := s.engine.ListRecords(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	now := s.engine.Now()
	stats := &RecordStatistics{
		TotalRecords: len(records),
		ByStatus: map[string]int{
			string(maintenance.RecordStatusScheduled): 0,
			string(maintenance.RecordStatusActive):    0,
			string(maintenance.RecordStatusOverdue):   0,
			string(maintenance.RecordStatusCompleted): 0,
		},
		OpenCost:  decimal.Zero,
		TotalCost: decimal.Zero,
	}
	for _, r := range records {
		stats.ByStatus[string(r.Status(now))]++
		cost := r.TotalCost()
		stats.TotalCost = stats.TotalCost.Add(cost)
		if !r.IsClosed() {
			stats.OpenCost = stats.OpenCost.Add(cost)
		}
		for _, step := range r.Steps {
			if step.IsOverdue(now) {
				stats.OverdueSteps++
			}
			if step.NeedsFollowUp(now, s.opts.FollowUpAfter) {
				stats.StepsNeedingFollowUp++
			}
		}
	}
	return stats, nil
}

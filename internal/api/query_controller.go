package api

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/service"
	"github.com/mautops/maintenance-gin/internal/utils"
)

// QueryController 查询控制器
type QueryController struct {
	queryService      service.QueryService
	statisticsService service.StatisticsService
	auditLogService   service.AuditLogService
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService, statisticsService service.StatisticsService, auditLogService service.AuditLogService) *QueryController {
	return &QueryController{
		queryService:      queryService,
		statisticsService: statisticsService,
		auditLogService:   auditLogService,
	}
}

// ListRecords 列出记录
// @Summary      获取维修记录列表
// @Description  按派生状态和设备过滤,分页获取记录
// @Tags         查询统计
// @Produce      json
// @Param        status query string false "记录状态" Enums(SCHEDULED, ACTIVE, OVERDUE, COMPLETED)
// @Param        equipment_id query string false "设备 ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /records [get]
// @Security     BearerAuth
func (c *QueryController) ListRecords(ctx *gin.Context) {
	var filter service.ListRecordsFilter

	if raw := ctx.Query("status"); raw != "" {
		status, err := maintenance.ParseRecordStatus(raw)
		if err != nil {
			HandleError(ctx, err)
			return
		}
		filter.Status = &status
	}
	if equipmentID := utils.TrimOptional(ctx.Query("equipment_id")); equipmentID != nil {
		if err := utils.ValidateID(*equipmentID); err != nil {
			HandleError(ctx, maintenance.Validationf("invalid equipment_id: %v", err))
			return
		}
		filter.EquipmentID = equipmentID
	}

	var ok bool
	if filter.Page, ok = queryInt(ctx, "page"); !ok {
		return
	}
	if filter.PageSize, ok = queryInt(ctx, "page_size"); !ok {
		return
	}

	records, total, err := c.queryService.ListRecords(ctx.Request.Context(), &filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	// ListRecords 已填充分页默认值
	Paginated(ctx, records, NewPaginationInfo(filter.Page, filter.PageSize, total))
}

// ListOverdue 列出逾期记录
// @Summary      逾期记录
// @Tags         查询统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /records/overdue [get]
// @Security     BearerAuth
func (c *QueryController) ListOverdue(ctx *gin.Context) {
	records, err := c.queryService.ListOverdueRecords(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, records)
}

// ListActive 列出进行中的记录
// @Summary      进行中的记录
// @Tags         查询统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /records/active [get]
// @Security     BearerAuth
func (c *QueryController) ListActive(ctx *gin.Context) {
	records, err := c.queryService.ListActiveRecords(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, records)
}

// GetHistory 获取状态历史
// @Summary      记录状态历史
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id}/history [get]
// @Security     BearerAuth
func (c *QueryController) GetHistory(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.queryService.GetHistory(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, history)
}

// GetStatistics 统计信息
// @Summary      维修统计
// @Tags         查询统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /statistics [get]
// @Security     BearerAuth
func (c *QueryController) GetStatistics(ctx *gin.Context) {
	stats, err := c.statisticsService.GetRecordStatistics(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// ListRecordAuditLogs 记录审计日志
// @Summary      记录审计日志
// @Description  分页获取记录及其步骤的操作日志,按发生时间升序
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "记录 ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id}/audit-logs [get]
// @Security     BearerAuth
func (c *QueryController) ListRecordAuditLogs(ctx *gin.Context) {
	c.listAuditLogs(ctx, c.auditLogService.ListByRecord)
}

// ListStepAuditLogs 步骤审计日志
// @Summary      步骤审计日志
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "步骤 ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /steps/{id}/audit-logs [get]
// @Security     BearerAuth
func (c *QueryController) ListStepAuditLogs(ctx *gin.Context) {
	c.listAuditLogs(ctx, c.auditLogService.ListByStep)
}

type auditLister func(ctx context.Context, id string, page *service.PageRequest) ([]service.AuditLogView, int64, error)

func (c *QueryController) listAuditLogs(ctx *gin.Context, list auditLister) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var page service.PageRequest
	if page.Page, ok = queryInt(ctx, "page"); !ok {
		return
	}
	if page.PageSize, ok = queryInt(ctx, "page_size"); !ok {
		return
	}

	logs, total, err := list(ctx.Request.Context(), id, &page)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Paginated(ctx, logs, NewPaginationInfo(page.Page, page.PageSize, total))
}

// queryInt 解析可选的正整数查询参数,缺省为 0
func queryInt(ctx *gin.Context, name string) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		HandleError(ctx, maintenance.Validationf("invalid %s %q", name, raw))
		return 0, false
	}
	return n, true
}

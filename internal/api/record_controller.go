package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/service"
)

// RecordController 维修记录控制器
type RecordController struct {
	recordService service.RecordService
	stepService   service.StepService
}

// NewRecordController 创建维修记录控制器
func NewRecordController(recordService service.RecordService, stepService service.StepService) *RecordController {
	return &RecordController{
		recordService: recordService,
		stepService:   stepService,
	}
}

// Create 创建维修记录
// @Summary      创建维修记录
// @Tags         维修记录
// @Accept       json
// @Produce      json
// @Param        request body service.CreateRecordRequest true "记录信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /records [post]
// @Security     BearerAuth
func (c *RecordController) Create(ctx *gin.Context) {
	var req service.CreateRecordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := c.recordService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Created(ctx, view)
}

// Get 获取维修记录(含派生状态和费用)
// @Summary      获取维修记录
// @Tags         维修记录
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id} [get]
// @Security     BearerAuth
func (c *RecordController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.recordService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// Update 修改未关闭记录的问题描述和预计完成时间
// @Summary      修改维修记录
// @Tags         维修记录
// @Accept       json
// @Produce      json
// @Param        id path string true "记录 ID"
// @Param        request body service.UpdateRecordRequest true "修改内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /records/{id} [put]
// @Security     BearerAuth
func (c *RecordController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateRecordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := c.recordService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// Delete 删除没有步骤的记录
// @Summary      删除维修记录
// @Tags         维修记录
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /records/{id} [delete]
// @Security     BearerAuth
func (c *RecordController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.recordService.Delete(ctx.Request.Context(), id); err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, gin.H{"id": id})
}

// ListSteps 按插入顺序列出记录的步骤
// @Summary      列出记录步骤
// @Tags         维修记录
// @Produce      json
// @Param        id path string true "记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /records/{id}/steps [get]
// @Security     BearerAuth
func (c *RecordController) ListSteps(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	steps, err := c.stepService.ListByRecord(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, steps)
}

// AddStep 向记录追加步骤,返回重新计算后的记录
// @Summary      添加步骤
// @Tags         维修记录
// @Accept       json
// @Produce      json
// @Param        id path string true "记录 ID"
// @Param        request body service.StepRequest true "步骤信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /records/{id}/steps [post]
// @Security     BearerAuth
func (c *RecordController) AddStep(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.StepRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := c.stepService.Add(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	ctx.Header("Location", "/api/v1/records/"+id)
	Created(ctx, view)
}

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/service"
)

// StepController 维修步骤控制器
type StepController struct {
	stepService service.StepService
}

// NewStepController 创建维修步骤控制器
func NewStepController(stepService service.StepService) *StepController {
	return &StepController{stepService: stepService}
}

// Get 获取步骤
// @Summary      获取步骤
// @Tags         维修步骤
// @Produce      json
// @Param        id path string true "步骤 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /steps/{id} [get]
// @Security     BearerAuth
func (c *StepController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	step, err := c.stepService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, step)
}

// Update 修改步骤,更换责任人时记录交接
// @Summary      修改步骤
// @Tags         维修步骤
// @Accept       json
// @Produce      json
// @Param        id path string true "步骤 ID"
// @Param        request body service.StepRequest true "步骤信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /steps/{id} [put]
// @Security     BearerAuth
func (c *StepController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.StepRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := c.stepService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// Delete 删除步骤
// @Summary      删除步骤
// @Tags         维修步骤
// @Param        id path string true "步骤 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /steps/{id} [delete]
// @Security     BearerAuth
func (c *StepController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.stepService.Delete(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// Complete 完成步骤,最终步骤完成后关闭记录
// @Summary      完成步骤
// @Tags         维修步骤
// @Accept       json
// @Produce      json
// @Param        id path string true "步骤 ID"
// @Param        request body service.CompleteStepRequest false "最终描述"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /steps/{id}/complete [post]
// @Security     BearerAuth
func (c *StepController) Complete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.CompleteStepRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	view, err := c.stepService.Complete(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// MarkFinal 标记最终步骤
// @Summary      标记最终步骤
// @Tags         维修步骤
// @Param        id path string true "步骤 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /steps/{id}/mark-final [post]
// @Security     BearerAuth
func (c *StepController) MarkFinal(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.stepService.MarkFinal(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// UnmarkFinal 取消最终步骤标记
// @Summary      取消最终步骤标记
// @Tags         维修步骤
// @Param        id path string true "步骤 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /steps/{id}/mark-final [delete]
// @Security     BearerAuth
func (c *StepController) UnmarkFinal(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.stepService.UnmarkFinal(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, view)
}

// Handoffs 列出步骤的责任人交接记录
// @Summary      步骤交接记录
// @Tags         维修步骤
// @Produce      json
// @Param        id path string true "步骤 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /steps/{id}/handoffs [get]
// @Security     BearerAuth
func (c *StepController) Handoffs(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	handoffs, err := c.stepService.Handoffs(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, handoffs)
}

package controller

import (
	"errors"
	"strconv"
	"wise_backend/internal/service"
	"wise_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ReconciliationController 暴露给内容协作方的删除/变更回调。
type ReconciliationController struct {
	Service *service.ReconciliationService
}

func NewReconciliationController(svc *service.ReconciliationService) *ReconciliationController {
	return &ReconciliationController{Service: svc}
}

func parseQueryID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Query(name), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func (c *ReconciliationController) respond(ctx *gin.Context, result *service.BatchResult, err error) {
	if err != nil {
		if errors.Is(err, util.ErrModuleNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 课时删除回调：清理进度并重算受影响学生（老师/管理员）
// @Tags 进度对账
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Param moduleId query int true "所属模块ID"
// @Success 200 {object} util.Response
// @Router /api/admin/lessons/{lessonId}/progress [delete]
func (c *ReconciliationController) LessonDeleted(ctx *gin.Context) {
	lessonID, ok := parseID(ctx, "lessonId")
	if !ok {
		return
	}
	moduleID, ok := parseQueryID(ctx, "moduleId")
	if !ok {
		return
	}

	result, err := c.Service.OnLessonDeleted(lessonID, moduleID)
	c.respond(ctx, result, err)
}

// @Summary 模块删除回调：清理进度/提交并按排除模块重算课程（老师/管理员）
// @Tags 进度对账
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Param courseId query int true "所属课程ID"
// @Success 200 {object} util.Response
// @Router /api/admin/modules/{moduleId}/progress [delete]
func (c *ReconciliationController) ModuleDeleted(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "moduleId")
	if !ok {
		return
	}
	courseID, ok := parseQueryID(ctx, "courseId")
	if !ok {
		return
	}

	result, err := c.Service.OnModuleDeleted(moduleID, courseID)
	c.respond(ctx, result, err)
}

// @Summary 测验删除回调：清理提交并重算受影响学生（老师/管理员）
// @Tags 进度对账
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Param moduleId query int true "所属模块ID"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{quizId}/progress [delete]
func (c *ReconciliationController) QuizDeleted(ctx *gin.Context) {
	quizID, ok := parseID(ctx, "quizId")
	if !ok {
		return
	}
	moduleID, ok := parseQueryID(ctx, "moduleId")
	if !ok {
		return
	}

	result, err := c.Service.OnQuizDeleted(quizID, moduleID)
	c.respond(ctx, result, err)
}

// @Summary 模块新增内容回调：对全部报名学生重算（老师/管理员）
// @Tags 进度对账
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/admin/modules/{moduleId}/content-added [post]
func (c *ReconciliationController) ContentAdded(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "moduleId")
	if !ok {
		return
	}

	result, err := c.Service.OnContentAdded(moduleID)
	c.respond(ctx, result, err)
}

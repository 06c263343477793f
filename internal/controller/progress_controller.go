package controller

import (
	"errors"
	"strconv"
	"wise_backend/internal/service"
	"wise_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProgressController struct {
	Service *service.ProgressService
}

func NewProgressController(svc *service.ProgressService) *ProgressController {
	return &ProgressController{Service: svc}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// @Summary 记录课时访问（访问即完成，级联重算模块与课程进度）
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{lessonId}/access [post]
func (c *ProgressController) RecordAccess(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	lessonID, ok := parseID(ctx, "lessonId")
	if !ok {
		return
	}

	lp, err := c.Service.RecordAccess(user.UserID, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, lp)
}

// @Summary 查询课程进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := parseID(ctx, "courseId")
	if !ok {
		return
	}

	cp, err := c.Service.GetCourseProgress(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if cp == nil {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, cp)
}

// @Summary 查询模块进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{moduleId}/progress [get]
func (c *ProgressController) GetModuleProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	moduleID, ok := parseID(ctx, "moduleId")
	if !ok {
		return
	}

	mp, err := c.Service.GetModuleProgress(user.UserID, moduleID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if mp == nil {
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, mp)
}

// @Summary 报名课程并初始化进度基线
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 201 {object} util.Response
// @Router /api/courses/{courseId}/enroll [post]
func (c *ProgressController) Enroll(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, ok := parseID(ctx, "courseId")
	if !ok {
		return
	}

	cp, err := c.Service.Enroll(user.UserID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAlreadyEnrolled):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, cp)
}

type GradeRequest struct {
	StudentID uint    `json:"studentId" binding:"required"`
	Score     float64 `json:"score"`
}

// @Summary 测验评分回调（老师/管理员）
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Param body body GradeRequest true "评分"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{quizId}/grade [post]
func (c *ProgressController) GradeQuiz(ctx *gin.Context) {
	quizID, ok := parseID(ctx, "quizId")
	if !ok {
		return
	}

	var req GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.OnQuizGraded(req.StudentID, quizID, req.Score); err != nil {
		switch {
		case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrSubmissionNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"graded": quizID})
}

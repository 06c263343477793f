package app

import (
	"wise_backend/docs"
	"wise_backend/internal/config"
	"wise_backend/internal/middleware"
	"wise_backend/internal/model"
	"wise_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 学生进度接口
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.POST("/lessons/:lessonId/access", c.progress.RecordAccess)
		authGroup.GET("/courses/:courseId/progress", c.progress.GetCourseProgress)
		authGroup.GET("/modules/:moduleId/progress", c.progress.GetModuleProgress)
		authGroup.POST("/courses/:courseId/enroll", c.progress.Enroll)
	}

	// 3. 内容协作方回调：评分与删除/变更对账，老师或管理员
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Teacher))
	{
		admin.POST("/quizzes/:quizId/grade", c.progress.GradeQuiz)
		admin.POST("/modules/:moduleId/content-added", c.reconciliation.ContentAdded)
		admin.DELETE("/lessons/:lessonId/progress", c.reconciliation.LessonDeleted)
		admin.DELETE("/modules/:moduleId/progress", c.reconciliation.ModuleDeleted)
		admin.DELETE("/quizzes/:quizId/progress", c.reconciliation.QuizDeleted)
	}
}

package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"wise_backend/internal/config"
	"wise_backend/internal/controller"
	"wise_backend/internal/repository"
	"wise_backend/internal/service"
	"wise_backend/pkg/database"
	"wise_backend/pkg/logger"
	"wise_backend/pkg/monitoring"
	"wise_backend/pkg/security"
	"wise_backend/pkg/tracing"
	"wise_backend/pkg/workerpool"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	configCallbacks []func(*config.Config)
}

type repositories struct {
	course         *repository.CourseRepository
	module         *repository.ModuleRepository
	lesson         *repository.LessonRepository
	quiz           *repository.QuizRepository
	enrollment     *repository.EnrollmentRepository
	lessonProgress *repository.LessonProgressRepository
	moduleProgress *repository.ModuleProgressRepository
	courseProgress *repository.CourseProgressRepository
	submission     *repository.QuizSubmissionRepository
}

type services struct {
	aggregation    *service.AggregationService
	progress       *service.ProgressService
	reconciliation *service.ReconciliationService
}

type controllers struct {
	progress       *controller.ProgressController
	reconciliation *controller.ReconciliationController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		course:         repository.NewCourseRepository(db),
		module:         repository.NewModuleRepository(db),
		lesson:         repository.NewLessonRepository(db),
		quiz:           repository.NewQuizRepository(db),
		enrollment:     repository.NewEnrollmentRepository(db),
		lessonProgress: repository.NewLessonProgressRepository(db),
		moduleProgress: repository.NewModuleProgressRepository(db),
		courseProgress: repository.NewCourseProgressRepository(db, rdb),
		submission:     repository.NewQuizSubmissionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	s.aggregation = service.NewAggregationService(
		repos.course,
		repos.module,
		repos.lessonProgress,
		repos.moduleProgress,
		repos.courseProgress,
		repos.submission,
		db,
	)

	s.progress = service.NewProgressService(
		repos.lesson,
		repos.module,
		repos.course,
		repos.quiz,
		repos.enrollment,
		repos.lessonProgress,
		repos.moduleProgress,
		repos.courseProgress,
		repos.submission,
		s.aggregation,
		db,
	)

	s.reconciliation = service.NewReconciliationService(
		repos.module,
		repos.course,
		repos.enrollment,
		repos.lessonProgress,
		repos.moduleProgress,
		repos.submission,
		s.aggregation,
		workerpool.New(cfg.Worker.PoolSize),
		db,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		progress:       controller.NewProgressController(s.progress),
		reconciliation: controller.NewReconciliationController(s.reconciliation),
		health:         controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg, db)
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("wise-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

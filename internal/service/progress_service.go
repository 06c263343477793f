package service

import (
	"time"
	"wise_backend/internal/model"
	"wise_backend/internal/repository"
	"wise_backend/internal/util"
	"wise_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressService 处理访问打点、测验评分回调、报名初始化与进度读取。
// 简化的完成策略：课时被访问即视为完成。
type ProgressService struct {
	LessonRepo         *repository.LessonRepository
	ModuleRepo         *repository.ModuleRepository
	CourseRepo         *repository.CourseRepository
	QuizRepo           *repository.QuizRepository
	EnrollmentRepo     *repository.EnrollmentRepository
	LessonProgressRepo *repository.LessonProgressRepository
	ModuleProgressRepo *repository.ModuleProgressRepository
	CourseProgressRepo *repository.CourseProgressRepository
	SubmissionRepo     *repository.QuizSubmissionRepository
	Aggregator         *AggregationService
	DB                 *gorm.DB
}

func NewProgressService(
	lessonRepo *repository.LessonRepository,
	moduleRepo *repository.ModuleRepository,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	lessonProgressRepo *repository.LessonProgressRepository,
	moduleProgressRepo *repository.ModuleProgressRepository,
	courseProgressRepo *repository.CourseProgressRepository,
	submissionRepo *repository.QuizSubmissionRepository,
	aggregator *AggregationService,
	db *gorm.DB,
) *ProgressService {
	return &ProgressService{
		LessonRepo:         lessonRepo,
		ModuleRepo:         moduleRepo,
		CourseRepo:         courseRepo,
		QuizRepo:           quizRepo,
		EnrollmentRepo:     enrollmentRepo,
		LessonProgressRepo: lessonProgressRepo,
		ModuleProgressRepo: moduleProgressRepo,
		CourseProgressRepo: courseProgressRepo,
		SubmissionRepo:     submissionRepo,
		Aggregator:         aggregator,
		DB:                 db,
	}
}

// RecordAccess 记录课时访问并向上级联：课时 → 模块 → 课程。
// 重复访问只增加浏览次数和最近访问时间，完成标记单调不回退。
func (s *ProgressService) RecordAccess(userID, lessonID uint) (*model.LessonProgress, error) {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var lp *model.LessonProgress

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.LessonProgressRepo.Find(userID, lessonID)
		if err != nil {
			return err
		}

		if existing == nil {
			lp = &model.LessonProgress{
				UserID:         userID,
				LessonID:       lessonID,
				ViewCount:      1,
				Progress:       100,
				IsCompleted:    true,
				StartedAt:      now,
				LastAccessedAt: now,
				CompletedAt:    &now,
			}
			return s.LessonProgressRepo.Create(tx, lp)
		}

		existing.ViewCount++
		existing.LastAccessedAt = now
		if !existing.IsCompleted {
			existing.IsCompleted = true
			existing.Progress = 100
			existing.CompletedAt = &now
		}
		lp = existing
		return s.LessonProgressRepo.Save(tx, existing)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Aggregator.RecomputeModule(userID, lesson.ModuleID); err != nil {
		return nil, err
	}

	module, err := s.ModuleRepo.FindByID(lesson.ModuleID)
	if err != nil {
		return nil, err
	}
	if module != nil {
		if _, err := s.Aggregator.RecomputeCourse(userID, module.CourseID); err != nil {
			return nil, err
		}
	}

	return lp, nil
}

// OnQuizGraded 评分协作方回调：把分数落到最近一次提交上并级联重算。
func (s *ProgressService) OnQuizGraded(userID, quizID uint, score float64) error {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return err
	}
	if quiz == nil {
		return util.ErrQuizNotFound
	}

	sub, err := s.SubmissionRepo.Latest(userID, quizID)
	if err != nil {
		return err
	}
	if sub == nil {
		return util.ErrSubmissionNotFound
	}

	now := time.Now()
	sub.Score = &score
	if sub.SubmittedAt == nil {
		sub.SubmittedAt = &now
	}
	if err := s.SubmissionRepo.Save(sub); err != nil {
		return err
	}

	if _, err := s.Aggregator.RecomputeModule(userID, quiz.ModuleID); err != nil {
		return err
	}

	module, err := s.ModuleRepo.FindByID(quiz.ModuleID)
	if err != nil {
		return err
	}
	if module != nil {
		if _, err := s.Aggregator.RecomputeCourse(userID, module.CourseID); err != nil {
			return err
		}
	}
	return nil
}

// Enroll 报名并初始化进度基线
func (s *ProgressService) Enroll(userID, courseID uint) (*model.CourseProgress, error) {
	enrolled, err := s.EnrollmentRepo.IsEnrolled(userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, util.ErrAlreadyEnrolled
	}

	cp, err := s.InitializeCourseProgress(userID, courseID)
	if err != nil {
		return nil, err
	}

	if err := s.EnrollmentRepo.Create(&model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	return cp, nil
}

// InitializeCourseProgress 为新报名学生建立 0% 基线：
// 课程一行、每个模块一行，不需要任何访问事件。
// 课程不存在时显式报错，这里没有合理的零值结果。
func (s *ProgressService) InitializeCourseProgress(userID, courseID uint) (*model.CourseProgress, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, util.ErrCourseNotFound
	}

	modules, err := s.CourseRepo.ModulesOf(courseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var cp *model.CourseProgress

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 已有进度的学生重复初始化不清零
		for _, m := range modules {
			var count int64
			if err := tx.Model(&model.ModuleProgress{}).
				Where("user_id = ? AND module_id = ?", userID, m.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&model.ModuleProgress{
				UserID:         userID,
				ModuleID:       m.ID,
				LastAccessedAt: now,
			}).Error; err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Model(&model.CourseProgress{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			cp = &model.CourseProgress{
				UserID:         userID,
				CourseID:       courseID,
				LastAccessedAt: now,
			}
			return tx.Create(cp).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cp == nil {
		return s.CourseProgressRepo.Find(userID, courseID)
	}

	logger.Log.Info("course progress initialized",
		zap.Uint("userId", userID),
		zap.Uint("courseId", courseID),
		zap.Int("modules", len(modules)))

	return cp, nil
}

// GetCourseProgress 读取课程聚合；无缓存、无行时按需重算一次
func (s *ProgressService) GetCourseProgress(userID, courseID uint) (*model.CourseProgress, error) {
	cp, err := s.CourseProgressRepo.FindCached(userID, courseID)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		return cp, nil
	}
	return s.Aggregator.RecomputeCourse(userID, courseID)
}

func (s *ProgressService) GetModuleProgress(userID, moduleID uint) (*model.ModuleProgress, error) {
	mp, err := s.ModuleProgressRepo.Find(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if mp != nil {
		return mp, nil
	}
	return s.Aggregator.RecomputeModule(userID, moduleID)
}

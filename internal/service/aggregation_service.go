package service

import (
	"math"
	"time"
	"wise_backend/internal/model"
	"wise_backend/internal/repository"

	"gorm.io/gorm"
)

// AggregationService 负责模块/课程两级聚合的全量重算。
// 聚合永远从课时进度和测验提交从头推导，任何一次触发都能自我修复。
type AggregationService struct {
	CourseRepo         *repository.CourseRepository
	ModuleRepo         *repository.ModuleRepository
	LessonProgressRepo *repository.LessonProgressRepository
	ModuleProgressRepo *repository.ModuleProgressRepository
	CourseProgressRepo *repository.CourseProgressRepository
	SubmissionRepo     *repository.QuizSubmissionRepository
	DB                 *gorm.DB
}

func NewAggregationService(
	courseRepo *repository.CourseRepository,
	moduleRepo *repository.ModuleRepository,
	lessonProgressRepo *repository.LessonProgressRepository,
	moduleProgressRepo *repository.ModuleProgressRepository,
	courseProgressRepo *repository.CourseProgressRepository,
	submissionRepo *repository.QuizSubmissionRepository,
	db *gorm.DB,
) *AggregationService {
	return &AggregationService{
		CourseRepo:         courseRepo,
		ModuleRepo:         moduleRepo,
		LessonProgressRepo: lessonProgressRepo,
		ModuleProgressRepo: moduleProgressRepo,
		CourseProgressRepo: courseProgressRepo,
		SubmissionRepo:     submissionRepo,
		DB:                 db,
	}
}

// RecomputeModule 重算一个学生的模块进度。
// 模块百分比是“存在的组成部分”的平均：有课时则计入课时完成率，
// 有测验则计入测验完成率；两者都没有时为 0。
// 模块不存在时静默返回 nil（内容可能刚被删除）。
func (s *AggregationService) RecomputeModule(userID, moduleID uint) (*model.ModuleProgress, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, nil
	}

	lessonIDs, err := s.ModuleRepo.LessonIDsOf(moduleID)
	if err != nil {
		return nil, err
	}

	lessonsCompleted, err := s.LessonProgressRepo.CountCompleted(userID, lessonIDs)
	if err != nil {
		return nil, err
	}

	quiz, err := s.ModuleRepo.QuizOf(moduleID)
	if err != nil {
		return nil, err
	}

	var quizScore *float64
	if quiz != nil {
		quizScore, err = s.SubmissionRepo.BestScore(userID, quiz.ID)
		if err != nil {
			return nil, err
		}
	}
	quizCompleted := quizScore != nil

	var parts []float64
	if len(lessonIDs) > 0 {
		parts = append(parts, float64(lessonsCompleted)/float64(len(lessonIDs))*100)
	}
	if quiz != nil {
		if quizCompleted {
			parts = append(parts, 100)
		} else {
			parts = append(parts, 0)
		}
	}
	overall := roundPercentage(parts)

	now := time.Now()
	isCompleted := overall >= 100

	existing, err := s.ModuleProgressRepo.Find(userID, moduleID)
	if err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if isCompleted {
		// 已完成且之前就完成：保留原完成时间，保证重算幂等
		if existing != nil && existing.CompletedAt != nil {
			completedAt = existing.CompletedAt
		} else {
			completedAt = &now
		}
	}

	// 不带主键插入，冲突只会落在 (user_id, module_id) 唯一索引上
	mp := &model.ModuleProgress{
		UserID:               userID,
		ModuleID:             moduleID,
		CompletionPercentage: overall,
		LessonsCompleted:     lessonsCompleted,
		QuizCompleted:        quizCompleted,
		QuizScore:            quizScore,
		IsCompleted:          isCompleted,
		CompletedAt:          completedAt,
		LastAccessedAt:       now,
	}
	if err := s.ModuleProgressRepo.Upsert(mp); err != nil {
		return nil, err
	}
	if existing != nil {
		mp.ID = existing.ID
		mp.CreatedAt = existing.CreatedAt
	}
	return mp, nil
}

// RecomputeCourse 重算一个学生的课程进度（不排除任何模块）。
func (s *AggregationService) RecomputeCourse(userID, courseID uint) (*model.CourseProgress, error) {
	return s.RecalculateCourse(userID, courseID, nil)
}

// RecalculateCourse 从课时/测验源表全量重算课程进度。
// excludeModuleID 仅用于模块删除窗口：此时模块行可能已经不在内容表里，
// 它的课时与测验必须从分母中剔除而不是查找。
// 课程百分比按课程全量比例计算，不是各模块百分比的平均。
func (s *AggregationService) RecalculateCourse(userID, courseID uint, excludeModuleID *uint) (*model.CourseProgress, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, nil
	}

	modules, err := s.CourseRepo.ModulesOf(courseID)
	if err != nil {
		return nil, err
	}

	var lessonIDs []uint
	var quizIDs []uint
	var moduleIDs []uint
	for _, m := range modules {
		if excludeModuleID != nil && m.ID == *excludeModuleID {
			continue
		}
		moduleIDs = append(moduleIDs, m.ID)
		for _, l := range m.Lessons {
			lessonIDs = append(lessonIDs, l.ID)
		}
		if m.Quiz != nil {
			quizIDs = append(quizIDs, m.Quiz.ID)
		}
	}

	lessonsCompleted, err := s.LessonProgressRepo.CountCompleted(userID, lessonIDs)
	if err != nil {
		return nil, err
	}

	quizzesCompleted, err := s.SubmissionRepo.CountScoredQuizzes(userID, quizIDs)
	if err != nil {
		return nil, err
	}

	averageScore, err := s.SubmissionRepo.AverageScore(userID, quizIDs)
	if err != nil {
		return nil, err
	}

	var parts []float64
	if len(lessonIDs) > 0 {
		parts = append(parts, float64(lessonsCompleted)/float64(len(lessonIDs))*100)
	}
	if len(quizIDs) > 0 {
		parts = append(parts, float64(quizzesCompleted)/float64(len(quizIDs))*100)
	}
	overall := roundPercentage(parts)

	var currentModuleID *uint
	recent, err := s.ModuleProgressRepo.MostRecent(userID, moduleIDs)
	if err != nil {
		return nil, err
	}
	if recent != nil {
		id := recent.ModuleID
		currentModuleID = &id
	}

	existing, err := s.CourseProgressRepo.Find(userID, courseID)
	if err != nil {
		return nil, err
	}

	cp := &model.CourseProgress{
		UserID:               userID,
		CourseID:             courseID,
		CompletionPercentage: overall,
		LessonsCompleted:     lessonsCompleted,
		QuizzesCompleted:     quizzesCompleted,
		AverageQuizScore:     averageScore,
		CurrentModuleID:      currentModuleID,
		LastAccessedAt:       time.Now(),
	}
	if err := s.CourseProgressRepo.Upsert(cp); err != nil {
		return nil, err
	}
	if existing != nil {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	return cp, nil
}

// roundPercentage 对存在的组成部分取平均并四舍五入。
// 迁移期间必须与既有存量聚合保持同一舍入口径（四舍五入到最近整数）。
func roundPercentage(parts []float64) int {
	if len(parts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	pct := int(math.Round(sum / float64(len(parts))))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

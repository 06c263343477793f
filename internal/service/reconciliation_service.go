package service

import (
	"fmt"
	"wise_backend/internal/repository"
	"wise_backend/internal/util"
	"wise_backend/pkg/logger"
	"wise_backend/pkg/monitoring"
	"wise_backend/pkg/workerpool"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BatchResult 批量重算的结构化结果。单个学生失败不会中断批次，
// 失败名单返回给运维侧以便补算。
type BatchResult struct {
	Total  int            `json:"total"`
	Failed []BatchFailure `json:"failed,omitempty"`
}

type BatchFailure struct {
	UserID uint   `json:"userId"`
	Error  string `json:"error"`
}

// ReconciliationService 在内容被删除或新增后，清理孤儿进度行并为受影响
// 学生重建聚合。按学生的重算跑在有界工作池上，同一 (student, course)
// 键永远串行，避免交错重算互相覆盖。
type ReconciliationService struct {
	ModuleRepo         *repository.ModuleRepository
	CourseRepo         *repository.CourseRepository
	EnrollmentRepo     *repository.EnrollmentRepository
	LessonProgressRepo *repository.LessonProgressRepository
	ModuleProgressRepo *repository.ModuleProgressRepository
	SubmissionRepo     *repository.QuizSubmissionRepository
	Aggregator         *AggregationService
	Pool               *workerpool.Pool
	DB                 *gorm.DB
}

func NewReconciliationService(
	moduleRepo *repository.ModuleRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	lessonProgressRepo *repository.LessonProgressRepository,
	moduleProgressRepo *repository.ModuleProgressRepository,
	submissionRepo *repository.QuizSubmissionRepository,
	aggregator *AggregationService,
	pool *workerpool.Pool,
	db *gorm.DB,
) *ReconciliationService {
	return &ReconciliationService{
		ModuleRepo:         moduleRepo,
		CourseRepo:         courseRepo,
		EnrollmentRepo:     enrollmentRepo,
		LessonProgressRepo: lessonProgressRepo,
		ModuleProgressRepo: moduleProgressRepo,
		SubmissionRepo:     submissionRepo,
		Aggregator:         aggregator,
		Pool:               pool,
		DB:                 db,
	}
}

// OnLessonDeleted 课时删除回调（内容行已被协作方删掉）。
// 清掉该课时的进度行，再为模块内有进度的每个学生重算模块和课程。
func (s *ReconciliationService) OnLessonDeleted(lessonID, moduleID uint) (*BatchResult, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, util.ErrModuleNotFound
	}

	students, err := s.ModuleProgressRepo.StudentIDs(moduleID)
	if err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		return s.LessonProgressRepo.DeleteByLessonID(tx, lessonID)
	})
	if err != nil {
		return nil, err
	}

	courseID := module.CourseID
	return s.forEachStudent("lesson_deleted", courseID, students, func(uid uint) error {
		if _, err := s.Aggregator.RecomputeModule(uid, moduleID); err != nil {
			return err
		}
		_, err := s.Aggregator.RecomputeCourse(uid, courseID)
		return err
	}), nil
}

// OnModuleDeleted 模块删除回调，删除过程中途触发。
// 先取模块的课时集合与测验（晚一步这些信息就没了），再在一个事务里
// 清掉课时进度、测验答案/提交、模块进度，最后对每个受影响学生做
// 排除该模块的课程全量重算——此时模块行可能已不存在，不能再查。
func (s *ReconciliationService) OnModuleDeleted(moduleID, courseID uint) (*BatchResult, error) {
	// 1. 删除前捕获结构
	lessonIDs, err := s.ModuleRepo.LessonIDsOf(moduleID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.ModuleRepo.QuizOf(moduleID)
	if err != nil {
		return nil, err
	}
	students, err := s.ModuleProgressRepo.StudentIDs(moduleID)
	if err != nil {
		return nil, err
	}

	// 2. 清理孤儿行
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.LessonProgressRepo.DeleteByLessonIDs(tx, lessonIDs); err != nil {
			return err
		}
		if quiz != nil {
			if err := s.SubmissionRepo.DeleteForQuiz(tx, quiz.ID); err != nil {
				return err
			}
		}
		return s.ModuleProgressRepo.DeleteByModuleID(tx, moduleID)
	})
	if err != nil {
		return nil, err
	}

	// 3. 排除该模块重算课程
	return s.forEachStudent("module_deleted", courseID, students, func(uid uint) error {
		_, err := s.Aggregator.RecalculateCourse(uid, courseID, &moduleID)
		return err
	}), nil
}

// OnQuizDeleted 测验删除回调（测验行已被协作方删掉）。
// 先删答案再删提交，重算才不会把将亡测验算进来；模块进度里的测验状态
// 同事务清零。受影响集合取提交过的学生与模块内有进度学生的并集——
// 测验从分母里消失后，没提交过的学生的百分比同样会变。
func (s *ReconciliationService) OnQuizDeleted(quizID, moduleID uint) (*BatchResult, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, util.ErrModuleNotFound
	}

	submitters, err := s.SubmissionRepo.StudentIDs(quizID)
	if err != nil {
		return nil, err
	}
	tracked, err := s.ModuleProgressRepo.StudentIDs(moduleID)
	if err != nil {
		return nil, err
	}
	students := unionIDs(submitters, tracked)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.SubmissionRepo.DeleteForQuiz(tx, quizID); err != nil {
			return err
		}
		return s.ModuleProgressRepo.ResetQuiz(tx, moduleID)
	})
	if err != nil {
		return nil, err
	}

	courseID := module.CourseID
	return s.forEachStudent("quiz_deleted", courseID, students, func(uid uint) error {
		if _, err := s.Aggregator.RecomputeModule(uid, moduleID); err != nil {
			return err
		}
		_, err := s.Aggregator.RecomputeCourse(uid, courseID)
		return err
	}), nil
}

// OnContentAdded 模块新增课时/测验后的失效回调。
// 驱动集合是课程的报名学生而不是已有进度的学生：新内容会把已经
// “完成”的模块拉回未完成，哪怕学生还没有任何对应进度行。
func (s *ReconciliationService) OnContentAdded(moduleID uint) (*BatchResult, error) {
	module, err := s.ModuleRepo.FindByID(moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, util.ErrModuleNotFound
	}

	students, err := s.EnrollmentRepo.StudentIDsOfCourse(module.CourseID)
	if err != nil {
		return nil, err
	}

	courseID := module.CourseID
	return s.forEachStudent("content_added", courseID, students, func(uid uint) error {
		if _, err := s.Aggregator.RecomputeModule(uid, moduleID); err != nil {
			return err
		}
		_, err := s.Aggregator.RecomputeCourse(uid, courseID)
		return err
	}), nil
}

// forEachStudent 在工作池上逐学生执行重算。
// 失败只记录不中断：内容删除本身不能被单个学生的重算失败卡住。
func (s *ReconciliationService) forEachStudent(trigger string, courseID uint, students []uint, fn func(uid uint) error) *BatchResult {
	tasks := make([]workerpool.Task, len(students))
	for i, uid := range students {
		uid := uid
		tasks[i] = workerpool.Task{
			Key: fmt.Sprintf("%d:%d", uid, courseID),
			Run: func() error { return fn(uid) },
		}
	}

	errs := s.Pool.Do(tasks)

	result := &BatchResult{Total: len(students)}
	for i, err := range errs {
		monitoring.RecomputeCounter.WithLabelValues(trigger).Inc()
		if err == nil {
			continue
		}
		monitoring.RecomputeFailures.WithLabelValues(trigger).Inc()
		logger.Log.Error("per-student recompute failed",
			zap.String("trigger", trigger),
			zap.Uint("userId", students[i]),
			zap.Uint("courseId", courseID),
			zap.Error(err))
		result.Failed = append(result.Failed, BatchFailure{
			UserID: students[i],
			Error:  err.Error(),
		})
	}
	return result
}

func unionIDs(a, b []uint) []uint {
	seen := make(map[uint]bool, len(a)+len(b))
	var out []uint
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

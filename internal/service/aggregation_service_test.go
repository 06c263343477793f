package service

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"wise_backend/internal/model"
	"wise_backend/internal/repository"
	"wise_backend/pkg/database"
	"wise_backend/pkg/logger"
	"wise_backend/pkg/workerpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db             *gorm.DB
	aggregation    *AggregationService
	progress       *ProgressService
	reconciliation *ReconciliationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.Log = zap.NewNop()

	// 每个测试独立的共享缓存内存库，避免连接池各拿一个空库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	courseRepo := repository.NewCourseRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	lessonProgressRepo := repository.NewLessonProgressRepository(db)
	moduleProgressRepo := repository.NewModuleProgressRepository(db)
	courseProgressRepo := repository.NewCourseProgressRepository(db, nil)
	submissionRepo := repository.NewQuizSubmissionRepository(db)

	aggregation := NewAggregationService(
		courseRepo, moduleRepo, lessonProgressRepo, moduleProgressRepo,
		courseProgressRepo, submissionRepo, db,
	)
	progress := NewProgressService(
		lessonRepo, moduleRepo, courseRepo, quizRepo, enrollmentRepo,
		lessonProgressRepo, moduleProgressRepo, courseProgressRepo,
		submissionRepo, aggregation, db,
	)
	reconciliation := NewReconciliationService(
		moduleRepo, courseRepo, enrollmentRepo, lessonProgressRepo,
		moduleProgressRepo, submissionRepo, aggregation, workerpool.New(4), db,
	)

	return &testEnv{
		db:             db,
		aggregation:    aggregation,
		progress:       progress,
		reconciliation: reconciliation,
	}
}

func (e *testEnv) seedCourse(t *testing.T) *model.Course {
	t.Helper()
	course := &model.Course{Title: "Go 入门", IsPublished: true}
	require.NoError(t, e.db.Create(course).Error)
	return course
}

func (e *testEnv) seedModule(t *testing.T, courseID uint, order int) *model.Module {
	t.Helper()
	m := &model.Module{CourseID: courseID, Title: fmt.Sprintf("模块 %d", order), Order: order}
	require.NoError(t, e.db.Create(m).Error)
	return m
}

func (e *testEnv) seedLessons(t *testing.T, moduleID uint, n int) []model.Lesson {
	t.Helper()
	lessons := make([]model.Lesson, n)
	for i := range lessons {
		lessons[i] = model.Lesson{ModuleID: moduleID, Title: fmt.Sprintf("课时 %d", i+1), Order: i + 1}
	}
	require.NoError(t, e.db.Create(&lessons).Error)
	return lessons
}

func (e *testEnv) seedQuiz(t *testing.T, moduleID uint) *model.Quiz {
	t.Helper()
	q := &model.Quiz{ModuleID: moduleID, Title: "单元测验"}
	require.NoError(t, e.db.Create(q).Error)
	return q
}

func (e *testEnv) completeLesson(t *testing.T, userID, lessonID uint) {
	t.Helper()
	now := time.Now()
	require.NoError(t, e.db.Create(&model.LessonProgress{
		UserID:         userID,
		LessonID:       lessonID,
		ViewCount:      1,
		Progress:       100,
		IsCompleted:    true,
		StartedAt:      now,
		LastAccessedAt: now,
		CompletedAt:    &now,
	}).Error)
}

func (e *testEnv) submitQuiz(t *testing.T, userID, quizID uint, score *float64) *model.QuizSubmission {
	t.Helper()
	sub := &model.QuizSubmission{
		UserID:    userID,
		QuizID:    quizID,
		Score:     score,
		StartedAt: time.Now(),
	}
	require.NoError(t, e.db.Create(sub).Error)
	return sub
}

func scoreOf(v float64) *float64 { return &v }

func TestRecomputeModuleAveragesLessonAndQuizParts(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 4)
	quiz := e.seedQuiz(t, module.ID)

	const uid = 1
	e.completeLesson(t, uid, lessons[0].ID)
	e.completeLesson(t, uid, lessons[1].ID)
	e.submitQuiz(t, uid, quiz.ID, nil) // 未评分提交不算完成

	mp, err := e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)

	// 课时 50%，测验 0%，均值 25%
	assert.Equal(t, 25, mp.CompletionPercentage)
	assert.Equal(t, 2, mp.LessonsCompleted)
	assert.False(t, mp.QuizCompleted)
	assert.Nil(t, mp.QuizScore)
	assert.False(t, mp.IsCompleted)
	assert.Nil(t, mp.CompletedAt)
}

func TestRecomputeModuleQuizOnly(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	quiz := e.seedQuiz(t, module.ID)

	const uid = 1
	e.submitQuiz(t, uid, quiz.ID, scoreOf(85))

	mp, err := e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.Equal(t, 100, mp.CompletionPercentage)
	assert.True(t, mp.QuizCompleted)
	require.NotNil(t, mp.QuizScore)
	assert.Equal(t, 85.0, *mp.QuizScore)
	assert.True(t, mp.IsCompleted)
	assert.NotNil(t, mp.CompletedAt)
}

func TestRecomputeModuleLessonsOnly(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 2)

	const uid = 1
	e.completeLesson(t, uid, lessons[0].ID)

	mp, err := e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.Equal(t, 50, mp.CompletionPercentage)
	assert.False(t, mp.IsCompleted)
}

func TestRecomputeModuleEmptyModule(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)

	mp, err := e.aggregation.RecomputeModule(1, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.Equal(t, 0, mp.CompletionPercentage)
	assert.False(t, mp.IsCompleted)
}

func TestRecomputeModuleMissingModule(t *testing.T) {
	e := newTestEnv(t)

	mp, err := e.aggregation.RecomputeModule(1, 9999)
	require.NoError(t, err)
	assert.Nil(t, mp)
}

func TestRecomputeModuleRoundsHalfUp(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 4)
	quiz := e.seedQuiz(t, module.ID)

	const uid = 1
	e.completeLesson(t, uid, lessons[0].ID)
	e.submitQuiz(t, uid, quiz.ID, scoreOf(100))

	mp, err := e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)

	// 课时 25% + 测验 100% = 62.5%，四舍五入到 63
	assert.Equal(t, 63, mp.CompletionPercentage)
}

func TestRecomputeModulePreservesCompletedAt(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 1)

	const uid = 1
	e.completeLesson(t, uid, lessons[0].ID)

	mp, err := e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.True(t, mp.IsCompleted)

	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, e.db.Model(&model.ModuleProgress{}).
		Where("user_id = ? AND module_id = ?", uid, module.ID).
		Update("completed_at", fixed).Error)

	mp, err = e.aggregation.RecomputeModule(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp.CompletedAt)
	assert.True(t, mp.CompletedAt.Equal(fixed))
}

func TestRecalculateCourseUsesFlatRatios(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	m1 := e.seedModule(t, course.ID, 1)
	m2 := e.seedModule(t, course.ID, 2)
	l1 := e.seedLessons(t, m1.ID, 1)
	e.seedLessons(t, m2.ID, 9)

	const uid = 1
	e.completeLesson(t, uid, l1[0].ID)
	_, err := e.aggregation.RecomputeModule(uid, m1.ID)
	require.NoError(t, err)

	cp, err := e.aggregation.RecomputeCourse(uid, course.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)

	// 课程按全量课时比例 1/10，不是模块百分比的平均 (100+0)/2
	assert.Equal(t, 10, cp.CompletionPercentage)
	assert.Equal(t, 1, cp.LessonsCompleted)
	require.NotNil(t, cp.CurrentModuleID)
	assert.Equal(t, m1.ID, *cp.CurrentModuleID)
}

func TestRecalculateCourseExcludesModule(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	m1 := e.seedModule(t, course.ID, 1)
	m2 := e.seedModule(t, course.ID, 2)
	l1 := e.seedLessons(t, m1.ID, 2)
	e.seedLessons(t, m2.ID, 2)

	const uid = 1
	e.completeLesson(t, uid, l1[0].ID)
	e.completeLesson(t, uid, l1[1].ID)

	cp, err := e.aggregation.RecomputeCourse(uid, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, cp.CompletionPercentage)

	cp, err = e.aggregation.RecalculateCourse(uid, course.ID, &m2.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, cp.CompletionPercentage)
}

func TestRecalculateCourseQuizRatioAndAverage(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	m1 := e.seedModule(t, course.ID, 1)
	m2 := e.seedModule(t, course.ID, 2)
	q1 := e.seedQuiz(t, m1.ID)
	q2 := e.seedQuiz(t, m2.ID)

	const uid = 1
	e.submitQuiz(t, uid, q1.ID, scoreOf(80))
	e.submitQuiz(t, uid, q2.ID, nil)

	cp, err := e.aggregation.RecomputeCourse(uid, course.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)

	assert.Equal(t, 50, cp.CompletionPercentage)
	assert.Equal(t, 1, cp.QuizzesCompleted)
	require.NotNil(t, cp.AverageQuizScore)
	assert.Equal(t, 80.0, *cp.AverageQuizScore)
}

func TestRecomputeCourseMissingCourse(t *testing.T) {
	e := newTestEnv(t)

	cp, err := e.aggregation.RecomputeCourse(1, 9999)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

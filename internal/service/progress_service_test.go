package service

import (
	"testing"
	"wise_backend/internal/model"
	"wise_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRecordAccessCreatesAndCascades(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 2)

	const uid = 1
	lp, err := e.progress.RecordAccess(uid, lessons[0].ID)
	require.NoError(t, err)
	require.NotNil(t, lp)

	assert.Equal(t, 1, lp.ViewCount)
	assert.True(t, lp.IsCompleted)
	assert.Equal(t, 100, lp.Progress)
	require.NotNil(t, lp.CompletedAt)

	// 级联出的模块与课程聚合
	var mp model.ModuleProgress
	require.NoError(t, e.db.Where("user_id = ? AND module_id = ?", uid, module.ID).First(&mp).Error)
	assert.Equal(t, 50, mp.CompletionPercentage)
	assert.Equal(t, 1, mp.LessonsCompleted)

	var cp model.CourseProgress
	require.NoError(t, e.db.Where("user_id = ? AND course_id = ?", uid, course.ID).First(&cp).Error)
	assert.Equal(t, 50, cp.CompletionPercentage)
	assert.Equal(t, 1, cp.LessonsCompleted)
}

func TestRecordAccessIsMonotonic(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 1)

	const uid = 1
	first, err := e.progress.RecordAccess(uid, lessons[0].ID)
	require.NoError(t, err)

	second, err := e.progress.RecordAccess(uid, lessons[0].ID)
	require.NoError(t, err)

	// 重复访问只涨浏览次数，完成状态与完成时间不回退
	assert.Equal(t, 2, second.ViewCount)
	assert.True(t, second.IsCompleted)
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())

	var mp model.ModuleProgress
	require.NoError(t, e.db.Where("user_id = ? AND module_id = ?", uid, module.ID).First(&mp).Error)
	assert.Equal(t, 100, mp.CompletionPercentage)

	var count int64
	require.NoError(t, e.db.Model(&model.LessonProgress{}).
		Where("user_id = ? AND lesson_id = ?", uid, lessons[0].ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordAccessUnknownLesson(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.progress.RecordAccess(1, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEnrollInitializesBaseline(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	m1 := e.seedModule(t, course.ID, 1)
	e.seedLessons(t, m1.ID, 3)
	m2 := e.seedModule(t, course.ID, 2)
	e.seedLessons(t, m2.ID, 2)

	const uid = 1
	cp, err := e.progress.Enroll(uid, course.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 0, cp.CompletionPercentage)

	// 每个模块一行 0% 基线，无需任何访问事件
	var mps []model.ModuleProgress
	require.NoError(t, e.db.Where("user_id = ?", uid).Find(&mps).Error)
	require.Len(t, mps, 2)
	for _, mp := range mps {
		assert.Equal(t, 0, mp.CompletionPercentage)
		assert.False(t, mp.IsCompleted)
	}

	_, err = e.progress.Enroll(uid, course.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)
}

func TestEnrollUnknownCourse(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.progress.Enroll(1, 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestOnQuizGraded(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	quiz := e.seedQuiz(t, module.ID)

	const uid = 1
	sub := e.submitQuiz(t, uid, quiz.ID, nil)

	require.NoError(t, e.progress.OnQuizGraded(uid, quiz.ID, 90))

	var saved model.QuizSubmission
	require.NoError(t, e.db.First(&saved, "id = ?", sub.ID).Error)
	require.NotNil(t, saved.Score)
	assert.Equal(t, 90.0, *saved.Score)
	assert.NotNil(t, saved.SubmittedAt)

	var mp model.ModuleProgress
	require.NoError(t, e.db.Where("user_id = ? AND module_id = ?", uid, module.ID).First(&mp).Error)
	assert.Equal(t, 100, mp.CompletionPercentage)
	assert.True(t, mp.QuizCompleted)
	require.NotNil(t, mp.QuizScore)
	assert.Equal(t, 90.0, *mp.QuizScore)

	var cp model.CourseProgress
	require.NoError(t, e.db.Where("user_id = ? AND course_id = ?", uid, course.ID).First(&cp).Error)
	assert.Equal(t, 100, cp.CompletionPercentage)
	assert.Equal(t, 1, cp.QuizzesCompleted)
}

func TestOnQuizGradedWithoutSubmission(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	quiz := e.seedQuiz(t, module.ID)

	err := e.progress.OnQuizGraded(1, quiz.ID, 90)
	assert.ErrorIs(t, err, util.ErrSubmissionNotFound)
}

func TestOnQuizGradedUnknownQuiz(t *testing.T) {
	e := newTestEnv(t)

	err := e.progress.OnQuizGraded(1, 9999, 90)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestGetCourseProgressRecomputesWhenMissing(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	e.seedLessons(t, module.ID, 2)

	const uid = 1
	cp, err := e.progress.GetCourseProgress(uid, course.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 0, cp.CompletionPercentage)
}

func TestGetModuleProgressRecomputesWhenMissing(t *testing.T) {
	e := newTestEnv(t)
	course := e.seedCourse(t)
	module := e.seedModule(t, course.ID, 1)
	lessons := e.seedLessons(t, module.ID, 2)

	const uid = 1
	e.completeLesson(t, uid, lessons[0].ID)

	mp, err := e.progress.GetModuleProgress(uid, module.ID)
	require.NoError(t, err)
	require.NotNil(t, mp)
	assert.Equal(t, 50, mp.CompletionPercentage)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"wise_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 三张进度表只由本服务写入。删除场景使用 Unscoped 物理删除，
// 否则唯一索引会挡住同一 (student, entity) 键的重建。

type LessonProgressRepository struct {
	DB *gorm.DB
}

func NewLessonProgressRepository(db *gorm.DB) *LessonProgressRepository {
	return &LessonProgressRepository{DB: db}
}

func (r *LessonProgressRepository) Find(userID, lessonID uint) (*model.LessonProgress, error) {
	var lp model.LessonProgress
	err := r.DB.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&lp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

func (r *LessonProgressRepository) Create(tx *gorm.DB, lp *model.LessonProgress) error {
	return tx.Create(lp).Error
}

func (r *LessonProgressRepository) Save(tx *gorm.DB, lp *model.LessonProgress) error {
	return tx.Save(lp).Error
}

// CountCompleted 统计课时集合内已完成的课时数
func (r *LessonProgressRepository) CountCompleted(userID uint, lessonIDs []uint) (int, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&model.LessonProgress{}).
		Where("user_id = ? AND lesson_id IN ? AND is_completed = ?", userID, lessonIDs, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *LessonProgressRepository) DeleteByLessonID(tx *gorm.DB, lessonID uint) error {
	return tx.Unscoped().Where("lesson_id = ?", lessonID).Delete(&model.LessonProgress{}).Error
}

func (r *LessonProgressRepository) DeleteByLessonIDs(tx *gorm.DB, lessonIDs []uint) error {
	if len(lessonIDs) == 0 {
		return nil
	}
	return tx.Unscoped().Where("lesson_id IN ?", lessonIDs).Delete(&model.LessonProgress{}).Error
}

type ModuleProgressRepository struct {
	DB *gorm.DB
}

func NewModuleProgressRepository(db *gorm.DB) *ModuleProgressRepository {
	return &ModuleProgressRepository{DB: db}
}

func (r *ModuleProgressRepository) Find(userID, moduleID uint) (*model.ModuleProgress, error) {
	var mp model.ModuleProgress
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

// Upsert 以 (user_id, module_id) 为键写入聚合结果
func (r *ModuleProgressRepository) Upsert(mp *model.ModuleProgress) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completion_percentage", "lessons_completed", "quiz_completed",
			"quiz_score", "is_completed", "completed_at", "last_accessed_at",
			"updated_at",
		}),
	}).Create(mp).Error
}

// StudentIDs 返回在该模块有进度记录的学生集合
func (r *ModuleProgressRepository) StudentIDs(moduleID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.ModuleProgress{}).
		Where("module_id = ?", moduleID).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MostRecent 返回学生最近访问的模块进度，作为课程续学指针
func (r *ModuleProgressRepository) MostRecent(userID uint, moduleIDs []uint) (*model.ModuleProgress, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	var mp model.ModuleProgress
	err := r.DB.Where("user_id = ? AND module_id IN ?", userID, moduleIDs).
		Order("last_accessed_at DESC").
		First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

func (r *ModuleProgressRepository) DeleteByModuleID(tx *gorm.DB, moduleID uint) error {
	return tx.Unscoped().Where("module_id = ?", moduleID).Delete(&model.ModuleProgress{}).Error
}

// ResetQuiz 在测验删除后清空模块进度中的测验状态
func (r *ModuleProgressRepository) ResetQuiz(tx *gorm.DB, moduleID uint) error {
	return tx.Model(&model.ModuleProgress{}).
		Where("module_id = ?", moduleID).
		Updates(map[string]interface{}{
			"quiz_completed": false,
			"quiz_score":     nil,
		}).Error
}

type CourseProgressRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

const courseProgressCacheTTL = 5 * time.Minute

func NewCourseProgressRepository(db *gorm.DB, rdb *redis.Client) *CourseProgressRepository {
	return &CourseProgressRepository{DB: db, RDB: rdb}
}

func (r *CourseProgressRepository) Find(userID, courseID uint) (*model.CourseProgress, error) {
	var cp model.CourseProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Upsert 写入课程聚合并使缓存失效
func (r *CourseProgressRepository) Upsert(cp *model.CourseProgress) error {
	err := r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completion_percentage", "lessons_completed", "quizzes_completed",
			"average_quiz_score", "current_module_id", "last_accessed_at",
			"updated_at",
		}),
	}).Create(cp).Error
	if err != nil {
		return err
	}

	r.invalidateCache(cp.UserID, cp.CourseID)
	return nil
}

func (r *CourseProgressRepository) FindCached(userID, courseID uint) (*model.CourseProgress, error) {
	if r.RDB != nil {
		data, err := r.RDB.Get(context.Background(), cacheKey(userID, courseID)).Bytes()
		if err == nil {
			var cp model.CourseProgress
			if json.Unmarshal(data, &cp) == nil {
				return &cp, nil
			}
		}
	}

	cp, err := r.Find(userID, courseID)
	if err != nil || cp == nil {
		return cp, err
	}

	if r.RDB != nil {
		if data, err := json.Marshal(cp); err == nil {
			r.RDB.Set(context.Background(), cacheKey(userID, courseID), data, courseProgressCacheTTL)
		}
	}
	return cp, nil
}

func (r *CourseProgressRepository) invalidateCache(userID, courseID uint) {
	if r.RDB == nil {
		return
	}
	r.RDB.Del(context.Background(), cacheKey(userID, courseID))
}

func cacheKey(userID, courseID uint) string {
	return fmt.Sprintf("wise:course_progress:%d:%d", userID, courseID)
}

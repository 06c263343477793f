package repository

import (
	"database/sql"
	"errors"
	"wise_backend/internal/model"

	"gorm.io/gorm"
)

type QuizSubmissionRepository struct {
	DB *gorm.DB
}

func NewQuizSubmissionRepository(db *gorm.DB) *QuizSubmissionRepository {
	return &QuizSubmissionRepository{DB: db}
}

// BestScore 返回学生对该测验已评分提交中的最高分，没有评分提交则为 nil
func (r *QuizSubmissionRepository) BestScore(userID, quizID uint) (*float64, error) {
	var best sql.NullFloat64
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("user_id = ? AND quiz_id = ? AND score IS NOT NULL", userID, quizID).
		Select("MAX(score)").
		Scan(&best).Error
	if err != nil {
		return nil, err
	}
	if !best.Valid {
		return nil, nil
	}
	return &best.Float64, nil
}

// CountScoredQuizzes 统计测验集合中学生已有评分提交的测验数（去重）
func (r *QuizSubmissionRepository) CountScoredQuizzes(userID uint, quizIDs []uint) (int, error) {
	if len(quizIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("user_id = ? AND quiz_id IN ? AND score IS NOT NULL", userID, quizIDs).
		Distinct("quiz_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// AverageScore 学生在测验集合内全部已评分提交的平均分，没有则为 nil
func (r *QuizSubmissionRepository) AverageScore(userID uint, quizIDs []uint) (*float64, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}
	var avg sql.NullFloat64
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("user_id = ? AND quiz_id IN ? AND score IS NOT NULL", userID, quizIDs).
		Select("AVG(score)").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// Latest 学生对该测验最近的一次提交
func (r *QuizSubmissionRepository) Latest(userID, quizID uint) (*model.QuizSubmission, error) {
	var sub model.QuizSubmission
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *QuizSubmissionRepository) Save(sub *model.QuizSubmission) error {
	return r.DB.Save(sub).Error
}

// StudentIDs 返回对该测验有提交记录的学生集合
func (r *QuizSubmissionRepository) StudentIDs(quizID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("quiz_id = ?", quizID).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteForQuiz 先删答案再删提交，保持两表一致
func (r *QuizSubmissionRepository) DeleteForQuiz(tx *gorm.DB, quizID uint) error {
	subIDs := tx.Model(&model.QuizSubmission{}).Select("id").Where("quiz_id = ?", quizID)
	if err := tx.Unscoped().Where("submission_id IN (?)", subIDs).Delete(&model.QuizAnswer{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("quiz_id = ?", quizID).Delete(&model.QuizSubmission{}).Error
}

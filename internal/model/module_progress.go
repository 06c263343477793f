package model

import "time"

// ModuleProgress 模块级聚合，完全由课时进度和测验提交推导，可随时重算
// swagger:model ModuleProgress
type ModuleProgress struct {
	BaseModel
	UserID               uint       `gorm:"index:idx_user_module,unique" json:"userId"`
	ModuleID             uint       `gorm:"index:idx_user_module,unique" json:"moduleId"`
	CompletionPercentage int        `gorm:"default:0" json:"completionPercentage"`
	LessonsCompleted     int        `gorm:"default:0" json:"lessonsCompleted"`
	QuizCompleted        bool       `gorm:"default:false" json:"quizCompleted"`
	QuizScore            *float64   `json:"quizScore"`
	IsCompleted          bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt          *time.Time `json:"completedAt"`
	LastAccessedAt       time.Time  `json:"lastAccessedAt"`
}

func (ModuleProgress) TableName() string {
	return "module_progresses"
}

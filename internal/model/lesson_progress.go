package model

import "time"

// LessonProgress 记录学生对单个课时的访问与完成状态
// Under the simplified completion policy any access marks the lesson complete,
// so Progress is currently always 0 or 100. The column stays an integer so a
// finer-grained player position can reuse it later.
// swagger:model LessonProgress
type LessonProgress struct {
	BaseModel
	UserID         uint       `gorm:"index:idx_user_lesson,unique" json:"userId"`
	LessonID       uint       `gorm:"index:idx_user_lesson,unique" json:"lessonId"`
	ViewCount      int        `gorm:"default:0" json:"viewCount"`
	Progress       int        `gorm:"default:0" json:"progress"`
	IsCompleted    bool       `gorm:"default:false" json:"isCompleted"`
	StartedAt      time.Time  `json:"startedAt"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progresses"
}

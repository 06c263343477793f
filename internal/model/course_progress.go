package model

import "time"

// CourseProgress 课程级聚合，按课程全量课时/测验比例计算，而不是模块百分比的平均
// Certificate issuance gates on CompletionPercentage == 100.
// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID               uint      `gorm:"index:idx_user_course,unique" json:"userId"`
	CourseID             uint      `gorm:"index:idx_user_course,unique" json:"courseId"`
	CompletionPercentage int       `gorm:"default:0" json:"completionPercentage"`
	LessonsCompleted     int       `gorm:"default:0" json:"lessonsCompleted"`
	QuizzesCompleted     int       `gorm:"default:0" json:"quizzesCompleted"`
	AverageQuizScore     *float64  `json:"averageQuizScore"`
	CurrentModuleID      *uint     `json:"currentModuleId"`
	LastAccessedAt       time.Time `json:"lastAccessedAt"`
}

func (CourseProgress) TableName() string {
	return "course_progresses"
}

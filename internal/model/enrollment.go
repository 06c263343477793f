package model

import "time"

// Enrollment defines the universe of students a content change must
// re-evaluate, even students who never opened the course.
type Enrollment struct {
	BaseModel
	UserID     uint      `gorm:"index:idx_user_course_enrollment,unique" json:"userId"`
	CourseID   uint      `gorm:"index:idx_user_course_enrollment,unique" json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

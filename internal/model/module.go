package model

// Module groups an ordered set of lessons plus at most one quiz.
type Module struct {
	BaseModel
	CourseID uint     `gorm:"index;not null" json:"courseId"`
	Title    string   `gorm:"size:255;not null" json:"title"`
	Order    int      `gorm:"default:0" json:"order"`
	Lessons  []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
	Quiz     *Quiz    `gorm:"foreignKey:ModuleID" json:"quiz,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

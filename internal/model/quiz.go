package model

// Quiz content is authored by the course collaborator; at most one quiz per
// module, enforced by the unique index.
type Quiz struct {
	BaseModel
	ModuleID  uint           `gorm:"uniqueIndex;not null" json:"moduleId"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID   uint   `gorm:"index;not null" json:"quizId"`
	Question string `gorm:"type:text;not null" json:"question"`
	Options  string `gorm:"type:json" json:"options"` // string array JSON: ["A", "B"]
	Answer   string `gorm:"type:text" json:"answer"`
	Points   int    `gorm:"default:0" json:"points"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

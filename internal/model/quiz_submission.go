package model

import "time"

// QuizSubmission is written by the assessment collaborator. A null Score
// means the attempt is still in progress or awaiting grading; only scored
// submissions count toward quiz completion.
type QuizSubmission struct {
	UUIDBase
	UserID      uint         `gorm:"index:idx_user_quiz" json:"userId"`
	QuizID      uint         `gorm:"index:idx_user_quiz" json:"quizId"`
	Score       *float64     `json:"score"`
	StartedAt   time.Time    `json:"startedAt"`
	SubmittedAt *time.Time   `json:"submittedAt"`
	Answers     []QuizAnswer `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

func (QuizSubmission) TableName() string {
	return "quiz_submissions"
}

type QuizAnswer struct {
	BaseModel
	SubmissionID string `gorm:"index;type:varchar(36);not null" json:"submissionId"`
	QuestionID   uint   `gorm:"index;not null" json:"questionId"`
	Answer       string `gorm:"type:text" json:"answer"`
	IsCorrect    bool   `gorm:"default:false" json:"isCorrect"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}

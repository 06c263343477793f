package model

type LessonContentType string

const (
	LessonVideo    LessonContentType = "video"
	LessonDocument LessonContentType = "document"
	LessonLink     LessonContentType = "link"
)

type Lesson struct {
	BaseModel
	ModuleID    uint              `gorm:"index;not null" json:"moduleId"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Order       int               `gorm:"default:0" json:"order"`
	ContentType LessonContentType `gorm:"size:20;default:video" json:"contentType"`
	ContentURL  string            `gorm:"size:500" json:"contentUrl"`
}

func (Lesson) TableName() string {
	return "lessons"
}

package util

import "errors"

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrSubmissionNotFound = errors.New("quiz submission not found")
	ErrAlreadyEnrolled    = errors.New("student already enrolled in course")
	ErrPermissionDenied   = errors.New("permission denied")
)

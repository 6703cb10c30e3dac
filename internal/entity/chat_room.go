package entity

// ChatRoom is the chat channel of exactly one course. Both the course and the
// name are unique, so the pair (course, name) is unique too.
type ChatRoom struct {
	SnowFlakeBase

	CourseID string `gorm:"uniqueIndex"`
	Course   Course `gorm:"foreignKey:CourseID"`

	Name string `gorm:"uniqueIndex;size:255"`
}

package entity

type Course struct {
	Base
	Name         string
	InstructorID string `gorm:"index"`
	Instructor   User   `gorm:"foreignKey:InstructorID"`
	Published    bool
}

type Enrollment struct {
	UserID string `gorm:"primaryKey"`
	User   User   `gorm:"foreignKey:UserID"`

	CourseID string `gorm:"primaryKey;index"`
	Course   Course `gorm:"foreignKey:CourseID"`
}

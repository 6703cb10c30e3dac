package entity

import "strings"

type User struct {
	Base
	Username  string `gorm:"unique"`
	FirstName string
	LastName  string
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

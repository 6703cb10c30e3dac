package entity

import "gorm.io/gorm"

// MigrateTable creates the tables from the entity definitions. Deployed mysql
// databases are migrated by the sql files of the migration package instead.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Course{},
		&Enrollment{},
		&ChatRoom{},
		&ChatMessage{},
		&ChatMember{},
	)
}

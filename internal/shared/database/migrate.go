package database

import (
	"fmt"

	"attendly/internal/attendance"
	"attendly/internal/events"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&events.Event{},
		&attendance.Attendance{},
	); err != nil {
		return err
	}
	if err := MigrateConstraints(db); err != nil {
		return fmt.Errorf("failed to add constraints: %w", err)
	}
	return nil
}

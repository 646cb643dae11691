package database

import (
	"gorm.io/gorm"
)

// constraintStatements back the admission invariants at the database level.
// Each statement is idempotent.
var constraintStatements = []string{
	// A position exists exactly when the record is waitlisted
	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_attendances_position_status') THEN
			ALTER TABLE attendances ADD CONSTRAINT chk_attendances_position_status
			CHECK ((status = 'waitlisted') = (waitlist_position IS NOT NULL));
		END IF;
	END $$;`,

	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_attendances_position_positive') THEN
			ALTER TABLE attendances ADD CONSTRAINT chk_attendances_position_positive
			CHECK (waitlist_position IS NULL OR waitlist_position > 0);
		END IF;
	END $$;`,

	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_attendances_status') THEN
			ALTER TABLE attendances ADD CONSTRAINT chk_attendances_status
			CHECK (status IN ('confirmed', 'waitlisted', 'removed'));
		END IF;
	END $$;`,

	// Deferred so a reindex may permute positions inside one transaction
	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'uq_attendances_event_position') THEN
			ALTER TABLE attendances ADD CONSTRAINT uq_attendances_event_position
			UNIQUE (event_id, waitlist_position) DEFERRABLE INITIALLY DEFERRED;
		END IF;
	END $$;`,

	// One active registration per user and event
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_attendances_event_user_active
		ON attendances (event_id, user_id)
		WHERE status <> 'removed';`,

	// Waitlist reads in arrival order
	`CREATE INDEX IF NOT EXISTS idx_attendances_event_fifo
		ON attendances (event_id, status, registered_at, id);`,
}

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

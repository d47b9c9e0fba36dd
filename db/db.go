package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fitbook/fitbook-server/cmd/models"
)

// IsUniqueViolation reports whether err is a unique constraint failure, in
// both the postgres and the sqlite phrasing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}

func NewPSQLStorage(dbURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)

	return db, nil
}

// Migrate creates the schema plus the constraints application-level
// validation cannot be trusted with under concurrent writers: the booking
// request uniqueness comes from model tags, and slot exclusivity among
// confirmed bookings from a partial unique index so two racing requests for
// the same (schedule, date, time) cannot both commit as confirmed.
func Migrate(db *gorm.DB) error {
	tables := []struct {
		model interface{}
		name  string
	}{
		{&models.User{}, "User"},
		{&models.FitnessClub{}, "FitnessClub"},
		{&models.Trainer{}, "Trainer"},
		{&models.Schedule{}, "Schedule"},
		{&models.Booking{}, "Booking"},
	}

	for _, t := range tables {
		if err := db.AutoMigrate(t.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", t.name, err)
		}
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_confirmed_slot
		 ON bookings (schedule_id, booking_date, booking_time)
		 WHERE status = 'confirmed' AND deleted_at IS NULL`,
	).Error; err != nil {
		return fmt.Errorf("error creating confirmed-slot index: %w", err)
	}

	return nil
}

package db

import (
	"fmt"

	"github.com/zulandar/seatplan/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Member{},
		&models.Attendance{},
		&models.Arrangement{},
		&models.Seat{},
		&models.EmergencyChange{},
		&models.MemberSeatStatistic{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedMembers upserts the roster, keyed by member ID.
func SeedMembers(db *gorm.DB, members []models.Member) error {
	for _, m := range members {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "part", "height", "experience", "is_leader", "active"}),
		}).Create(&m)
		if result.Error != nil {
			return fmt.Errorf("db: seed member %q: %w", m.ID, result.Error)
		}
	}
	return nil
}

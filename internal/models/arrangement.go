package models

import "time"

// Arrangement is one service's seating plan.
type Arrangement struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Date          time.Time `gorm:"not null;index"`
	Title         string    `gorm:"size:128"`
	Status        string    `gorm:"size:16;default:DRAFT;index"`
	GridLayout    string    `gorm:"type:text"`
	GridRows      int
	Workflow      string `gorm:"type:text"`
	Version       int    `gorm:"not null;default:1"`
	IsRecommended bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Seats []Seat `gorm:"foreignKey:ArrangementID"`
}

// Seat assigns one member to one seat of an arrangement. Row and column are
// 1-based.
type Seat struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ArrangementID uint   `gorm:"not null;uniqueIndex:idx_seat_position"`
	MemberID      string `gorm:"size:36;not null;index"`
	Row           int    `gorm:"column:seat_row;not null;uniqueIndex:idx_seat_position"`
	Col           int    `gorm:"column:seat_col;not null;uniqueIndex:idx_seat_position"`
	Part          string `gorm:"size:16"`
	IsRowLeader   bool   `gorm:"default:false"`
}

// EmergencyChange is the stored audit record of an emergency operation.
type EmergencyChange struct {
	ID            string `gorm:"primaryKey;size:36"`
	ArrangementID uint   `gorm:"not null;index"`
	Type          string `gorm:"size:16;not null"`
	MemberID      string `gorm:"size:36;index"`
	Payload       string `gorm:"type:text"`
	CreatedAt     time.Time
}

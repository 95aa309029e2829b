package models

import "time"

// Member is a choir singer.
type Member struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string `gorm:"size:64;not null"`
	Part       string `gorm:"size:16;not null;index"`
	Height     int    // cm, 0 when unknown
	Experience int    // years
	IsLeader   bool   `gorm:"default:false"`
	Active     bool   `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Attendance records whether a member can sing on a given date. A member
// without a row for a date counts as available.
type Attendance struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MemberID  string    `gorm:"size:36;not null;uniqueIndex:idx_attendance_member_date"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_attendance_member_date"`
	Available bool      `gorm:"not null"`
	UpdatedAt time.Time
}

// MemberSeatStatistic is a member's learned seat preference. Row and column
// are 1-based.
type MemberSeatStatistic struct {
	MemberID         string `gorm:"primaryKey;size:36"`
	PreferredRow     int
	PreferredCol     int
	RowConsistency   float64
	ColConsistency   float64
	TotalAppearances int
	IsFixedSeat      bool `gorm:"default:false"`
	UpdatedAt        time.Time
}

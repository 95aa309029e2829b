package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/models"
	"github.com/zulandar/seatplan/internal/recommend"
	"github.com/zulandar/seatplan/internal/stats"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Member returns one roster entry.
func (s *Store) Member(ctx context.Context, id string) (models.Member, error) {
	var m models.Member
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Member{}, fmt.Errorf("store: member %q: %w", id, ErrNotFound)
		}
		return models.Member{}, fmt.Errorf("store: load member %q: %w", id, err)
	}
	return m, nil
}

// AvailableMembers returns the active members who can sing on date. A member
// with no attendance row for the date counts as available.
func (s *Store) AvailableMembers(ctx context.Context, date time.Time) ([]models.Member, error) {
	absent := s.db.Model(&models.Attendance{}).
		Select("member_id").
		Where("date = ? AND available = ?", Day(date), false)
	var out []models.Member
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("id NOT IN (?)", absent).
		Order("part, name, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: available members on %s: %w", Day(date).Format("2006-01-02"), err)
	}
	return out, nil
}

// SetAttendance records whether memberID can sing on date.
func (s *Store) SetAttendance(ctx context.Context, memberID string, date time.Time, available bool) error {
	row := models.Attendance{MemberID: memberID, Date: Day(date), Available: available}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"available", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("store: set attendance of %q: %w", memberID, result.Error)
	}
	return nil
}

// SaveEmergency stores the state produced by an emergency operation together
// with its change record, in one transaction. Unlike Save it is allowed on a
// CONFIRMED arrangement.
func (s *Store) SaveEmergency(ctx context.Context, id uint, expectedVersion int, state arrangement.State, rec emergency.Record) (int, error) {
	var version int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if version, err = s.save(tx, id, expectedVersion, state, nil, true); err != nil {
			return err
		}
		return appendChange(tx, id, rec)
	})
	if err != nil {
		return 0, fmt.Errorf("store: save emergency change on %d: %w", id, err)
	}
	return version, nil
}

// AppendChange stores an emergency change record.
func (s *Store) AppendChange(ctx context.Context, arrangementID uint, rec emergency.Record) error {
	if err := appendChange(s.db.WithContext(ctx), arrangementID, rec); err != nil {
		return fmt.Errorf("store: append change: %w", err)
	}
	return nil
}

func appendChange(tx *gorm.DB, arrangementID uint, rec emergency.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode change record: %w", err)
	}
	row := models.EmergencyChange{
		ID:            rec.ID,
		ArrangementID: arrangementID,
		Type:          string(rec.Type),
		MemberID:      rec.MemberID,
		Payload:       string(payload),
		CreatedAt:     rec.Timestamp,
	}
	return tx.Create(&row).Error
}

// Changes returns the emergency records of an arrangement, oldest first.
func (s *Store) Changes(ctx context.Context, arrangementID uint) ([]emergency.Record, error) {
	var rows []models.EmergencyChange
	err := s.db.WithContext(ctx).
		Where("arrangement_id = ?", arrangementID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: changes of %d: %w", arrangementID, err)
	}
	out := make([]emergency.Record, 0, len(rows))
	for _, r := range rows {
		var rec emergency.Record
		if err := json.Unmarshal([]byte(r.Payload), &rec); err != nil {
			return nil, fmt.Errorf("store: change %s: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecentSeats returns every seating of the last n published arrangements,
// oldest arrangement first.
func (s *Store) RecentSeats(ctx context.Context, n int) ([]stats.PastSeat, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Arrangement{}).
		Where("status IN ?", []string{string(arrangement.StatusShared), string(arrangement.StatusConfirmed)}).
		Order("date DESC, id DESC").
		Limit(n).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent arrangements: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []struct {
		ArrangementID uint
		Date          time.Time
		MemberID      string
		SeatRow       int
		SeatCol       int
	}
	err = s.db.WithContext(ctx).
		Table("seats").
		Select("seats.arrangement_id, arrangements.date, seats.member_id, seats.seat_row, seats.seat_col").
		Joins("JOIN arrangements ON arrangements.id = seats.arrangement_id").
		Where("seats.arrangement_id IN ?", ids).
		Order("arrangements.date, seats.arrangement_id, seats.seat_row, seats.seat_col").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent seats: %w", err)
	}
	out := make([]stats.PastSeat, 0, len(rows))
	for _, r := range rows {
		out = append(out, stats.PastSeat{
			MemberID:      r.MemberID,
			ArrangementID: r.ArrangementID,
			Date:          r.Date,
			Pos:           grid.FromRecord(grid.Record{Row: r.SeatRow, Col: r.SeatCol}),
		})
	}
	return out, nil
}

// UpsertStatistics stores learned preferences, one row per member.
func (s *Store) UpsertStatistics(ctx context.Context, prefs []recommend.Preference) error {
	if len(prefs) == 0 {
		return nil
	}
	rows := make([]models.MemberSeatStatistic, 0, len(prefs))
	for _, p := range prefs {
		rec := grid.Position{Row: p.PreferredRow, Col: p.PreferredCol}.Record()
		rows = append(rows, models.MemberSeatStatistic{
			MemberID:         p.MemberID,
			PreferredRow:     rec.Row,
			PreferredCol:     rec.Col,
			RowConsistency:   p.RowConsistency,
			ColConsistency:   p.ColConsistency,
			TotalAppearances: p.Appearances,
			IsFixedSeat:      p.IsFixed,
		})
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"preferred_row", "preferred_col", "row_consistency", "col_consistency",
			"total_appearances", "is_fixed_seat", "updated_at",
		}),
	}).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("store: upsert statistics: %w", result.Error)
	}
	return nil
}

// LoadPreferences returns the learned preferences of memberIDs, keyed by
// member. Members without statistics are absent from the map.
func (s *Store) LoadPreferences(ctx context.Context, memberIDs []string) (map[string]recommend.Preference, error) {
	out := make(map[string]recommend.Preference, len(memberIDs))
	if len(memberIDs) == 0 {
		return out, nil
	}
	var rows []models.MemberSeatStatistic
	if err := s.db.WithContext(ctx).Where("member_id IN ?", memberIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load preferences: %w", err)
	}
	for _, r := range rows {
		pos := grid.FromRecord(grid.Record{Row: r.PreferredRow, Col: r.PreferredCol})
		out[r.MemberID] = recommend.Preference{
			MemberID:       r.MemberID,
			PreferredRow:   pos.Row,
			PreferredCol:   pos.Col,
			Appearances:    r.TotalAppearances,
			RowConsistency: r.RowConsistency,
			ColConsistency: r.ColConsistency,
			IsFixed:        r.IsFixedSeat,
		}
	}
	return out, nil
}

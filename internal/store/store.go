// Package store persists arrangements, the roster, attendance, emergency
// changes and learned seat preferences with GORM.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/models"
	"github.com/zulandar/seatplan/internal/part"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrLocked is returned for ordinary edits of a CONFIRMED arrangement.
	ErrLocked = errors.New("store: arrangement is confirmed")
)

// Store is the GORM-backed repository.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Meta is an arrangement's metadata without its seats.
type Meta struct {
	ID        uint
	Date      time.Time
	Title     string
	Status    arrangement.Status
	Version   int
	Workflow  *arrangement.Workflow
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Day truncates t to midnight UTC, the form dates are stored in.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create inserts an empty DRAFT arrangement.
func (s *Store) Create(ctx context.Context, date time.Time, title string, layout grid.Layout) (Meta, error) {
	if err := grid.Validate(layout); err != nil {
		return Meta{}, fmt.Errorf("store: create arrangement: %w", err)
	}
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return Meta{}, fmt.Errorf("store: encode layout: %w", err)
	}
	wf := arrangement.NewWorkflow(true)
	wfJSON, err := json.Marshal(wf)
	if err != nil {
		return Meta{}, fmt.Errorf("store: encode workflow: %w", err)
	}
	row := models.Arrangement{
		Date:          Day(date),
		Title:         title,
		Status:        string(arrangement.StatusDraft),
		GridLayout:    string(layoutJSON),
		GridRows:      layout.Rows,
		Workflow:      string(wfJSON),
		Version:       1,
		IsRecommended: layout.Recommended,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Meta{}, fmt.Errorf("store: create arrangement: %w", err)
	}
	return metaOf(row, wf), nil
}

// List returns arrangement metadata, newest date first.
func (s *Store) List(ctx context.Context, limit int) ([]Meta, error) {
	var rows []models.Arrangement
	q := s.db.WithContext(ctx).Order("date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list arrangements: %w", err)
	}
	out := make([]Meta, 0, len(rows))
	for _, r := range rows {
		wf, err := decodeWorkflow(r.Workflow)
		if err != nil {
			return nil, fmt.Errorf("store: arrangement %d: %w", r.ID, err)
		}
		out = append(out, metaOf(r, wf))
	}
	return out, nil
}

// Load reads an arrangement into an editable arrangement.Store. Member
// names come from the roster.
func (s *Store) Load(ctx context.Context, id uint) (*arrangement.Store, Meta, error) {
	var row models.Arrangement
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Meta{}, fmt.Errorf("store: arrangement %d: %w", id, ErrNotFound)
		}
		return nil, Meta{}, fmt.Errorf("store: load arrangement %d: %w", id, err)
	}
	var layout grid.Layout
	if err := json.Unmarshal([]byte(row.GridLayout), &layout); err != nil {
		return nil, Meta{}, fmt.Errorf("store: arrangement %d: %w", id, err)
	}
	wf, err := decodeWorkflow(row.Workflow)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("store: arrangement %d: %w", id, err)
	}

	var seats []seatRow
	err = s.db.WithContext(ctx).
		Table("seats").
		Select("seats.member_id, seats.seat_row, seats.seat_col, seats.part, seats.is_row_leader, COALESCE(members.name, '') AS member_name").
		Joins("LEFT JOIN members ON members.id = seats.member_id").
		Where("seats.arrangement_id = ?", id).
		Order("seats.seat_row, seats.seat_col").
		Scan(&seats).Error
	if err != nil {
		return nil, Meta{}, fmt.Errorf("store: load seats of %d: %w", id, err)
	}

	st := arrangement.NewState(layout)
	for _, r := range seats {
		st.Set(arrangement.SeatRecord{
			MemberID:    r.MemberID,
			MemberName:  r.MemberName,
			Part:        part.Part(r.Part),
			Row:         r.SeatRow,
			Col:         r.SeatCol,
			IsRowLeader: r.IsRowLeader,
		}.Assignment())
	}
	return arrangement.FromState(st), metaOf(row, wf), nil
}

type seatRow struct {
	MemberID    string
	MemberName  string
	SeatRow     int
	SeatCol     int
	Part        string
	IsRowLeader bool
}

// Save writes state as the new content of arrangement id. It fails with
// ErrVersionConflict when the stored version is no longer expectedVersion
// and with ErrLocked when the arrangement is CONFIRMED. It returns the new
// version.
func (s *Store) Save(ctx context.Context, id uint, expectedVersion int, state arrangement.State, wf *arrangement.Workflow) (int, error) {
	var version int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		version, err = s.save(tx, id, expectedVersion, state, wf, false)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: save arrangement %d: %w", id, err)
	}
	return version, nil
}

// save runs inside a transaction. Emergency saves may touch a CONFIRMED
// arrangement.
func (s *Store) save(tx *gorm.DB, id uint, expectedVersion int, state arrangement.State, wf *arrangement.Workflow, emergency bool) (int, error) {
	var row models.Arrangement
	if err := tx.Select("id", "status", "version").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if arrangement.Status(row.Status).ReadOnly() && !emergency {
		return 0, ErrLocked
	}

	layoutJSON, err := json.Marshal(state.Layout)
	if err != nil {
		return 0, fmt.Errorf("encode layout: %w", err)
	}
	updates := map[string]interface{}{
		"grid_layout":    string(layoutJSON),
		"grid_rows":      state.Layout.Rows,
		"is_recommended": state.Layout.Recommended,
		"version":        gorm.Expr("version + 1"),
		"updated_at":     s.now(),
	}
	if wf != nil {
		wfJSON, err := json.Marshal(wf)
		if err != nil {
			return 0, fmt.Errorf("encode workflow: %w", err)
		}
		updates["workflow"] = string(wfJSON)
	}
	result := tx.Model(&models.Arrangement{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}

	if err := tx.Where("arrangement_id = ?", id).Delete(&models.Seat{}).Error; err != nil {
		return 0, fmt.Errorf("clear seats: %w", err)
	}
	assignments := state.Assignments()
	if len(assignments) > 0 {
		seats := make([]models.Seat, 0, len(assignments))
		for _, a := range assignments {
			r := a.Record()
			seats = append(seats, models.Seat{
				ArrangementID: id,
				MemberID:      r.MemberID,
				Row:           r.Row,
				Col:           r.Col,
				Part:          string(r.Part),
				IsRowLeader:   r.IsRowLeader,
			})
		}
		if err := tx.CreateInBatches(seats, 100).Error; err != nil {
			return 0, fmt.Errorf("insert seats: %w", err)
		}
	}
	return expectedVersion + 1, nil
}

// SetStatus moves arrangement id to status to, enforcing the allowed
// transitions. It returns the new version.
func (s *Store) SetStatus(ctx context.Context, id uint, to arrangement.Status) (int, error) {
	var version int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Arrangement
		if err := tx.Select("id", "status", "version").First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := arrangement.CheckTransition(arrangement.Status(row.Status), to); err != nil {
			return err
		}
		result := tx.Model(&models.Arrangement{}).
			Where("id = ? AND version = ?", id, row.Version).
			Updates(map[string]interface{}{
				"status":     string(to),
				"version":    gorm.Expr("version + 1"),
				"updated_at": s.now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}
		version = row.Version + 1
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: set status of %d: %w", id, err)
	}
	return version, nil
}

func metaOf(r models.Arrangement, wf *arrangement.Workflow) Meta {
	return Meta{
		ID:        r.ID,
		Date:      r.Date,
		Title:     r.Title,
		Status:    arrangement.Status(r.Status),
		Version:   r.Version,
		Workflow:  wf,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func decodeWorkflow(raw string) (*arrangement.Workflow, error) {
	if raw == "" {
		return arrangement.NewWorkflow(true), nil
	}
	wf := &arrangement.Workflow{}
	if err := json.Unmarshal([]byte(raw), wf); err != nil {
		return nil, err
	}
	return wf, nil
}

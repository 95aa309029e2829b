// Package service runs the seat-arrangement operations against the store:
// each call loads an arrangement, runs one engine operation and saves the
// result under the version it loaded.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/leader"
	"github.com/zulandar/seatplan/internal/models"
	"github.com/zulandar/seatplan/internal/notify"
	"github.com/zulandar/seatplan/internal/part"
	"github.com/zulandar/seatplan/internal/pastmap"
	"github.com/zulandar/seatplan/internal/recommend"
	"github.com/zulandar/seatplan/internal/store"
	"go.uber.org/zap"
)

// ErrNotPublished is returned for an emergency operation on a DRAFT
// arrangement.
var ErrNotPublished = errors.New("service: arrangement is not published")

// Opts holds the collaborators of a Service.
type Opts struct {
	Store       *store.Store
	Recommender recommend.Recommender
	Emergency   emergency.Options
	LeaderRules []leader.Rule
	Notifier    notify.Notifier
	Log         *zap.Logger
}

// Service runs arrangement operations.
type Service struct {
	store       *store.Store
	recommender recommend.Recommender
	mapper      *pastmap.Mapper
	engine      *emergency.Engine
	sides       part.Table
	leaderRules []leader.Rule
	notifier    notify.Notifier
	log         *zap.Logger
	edits       sessions
}

// New creates a Service. Unset collaborators get defaults: emergency options
// without a mode are replaced by emergency.DefaultOptions, and a nil
// recommender means the local heuristic.
func New(opts Opts) *Service {
	if opts.Emergency.Mode == "" {
		opts.Emergency = emergency.DefaultOptions()
	}
	sides := opts.Emergency.Sides
	if opts.Recommender == nil {
		opts.Recommender = recommend.NewLocal(sides)
	}
	if opts.LeaderRules == nil {
		opts.LeaderRules = leader.DefaultRules
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Service{
		store:       opts.Store,
		recommender: opts.Recommender,
		mapper:      pastmap.New(sides),
		engine:      emergency.New(opts.Emergency),
		sides:       sides,
		leaderRules: opts.LeaderRules,
		notifier:    opts.Notifier,
		log:         opts.Log,
	}
}

// View is an arrangement with its seats.
type View struct {
	store.Meta
	State arrangement.State
}

// Get returns arrangement id.
func (s *Service) Get(ctx context.Context, id uint) (View, error) {
	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return View{Meta: meta, State: st.State()}, nil
}

// List returns arrangement metadata, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]store.Meta, error) {
	return s.store.List(ctx, limit)
}

// Create starts an empty DRAFT arrangement for date.
func (s *Service) Create(ctx context.Context, date time.Time, title string, layout grid.Layout) (store.Meta, error) {
	meta, err := s.store.Create(ctx, date, title, layout)
	if err != nil {
		return store.Meta{}, err
	}
	s.log.Info("arrangement created", zap.Uint("arrangement", meta.ID), zap.Time("date", meta.Date))
	return meta, nil
}

// Recommend replaces the seats of arrangement id with a recommendation for
// the members available on its date. A nil layout keeps the arrangement's
// current grid.
func (s *Service) Recommend(ctx context.Context, id uint, layout *grid.Layout) (recommend.Result, error) {
	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return recommend.Result{}, err
	}
	if meta.Status.ReadOnly() {
		return recommend.Result{}, fmt.Errorf("service: recommend %d: %w", id, store.ErrLocked)
	}
	roster, err := s.store.AvailableMembers(ctx, meta.Date)
	if err != nil {
		return recommend.Result{}, err
	}
	members, err := toRecommendMembers(roster)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("service: recommend %d: %w", id, err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	prefs, err := s.store.LoadPreferences(ctx, ids)
	if err != nil {
		return recommend.Result{}, err
	}

	target := st.Layout()
	if layout != nil {
		if err := grid.Validate(*layout); err != nil {
			return recommend.Result{}, fmt.Errorf("service: recommend %d: %w", id, err)
		}
		target = layout.Clone()
	}
	res, err := s.recommender.Recommend(ctx, recommend.Request{Members: members, Layout: &target, Preferences: prefs})
	if err != nil {
		return recommend.Result{}, fmt.Errorf("service: recommend %d: %w", id, err)
	}

	st.Commit(res.State)
	meta.Workflow.Evaluate(st.State(), meta.Status)
	if _, err := s.store.Save(ctx, id, meta.Version, st.State(), meta.Workflow); err != nil {
		return recommend.Result{}, err
	}
	s.log.Info("arrangement recommended",
		zap.Uint("arrangement", id),
		zap.String("source", string(res.Source)),
		zap.Int("placed", len(res.State.Seats)),
		zap.Int("unassigned", len(res.Unassigned)),
		zap.Float64("quality", res.QualityScore),
	)
	return res, nil
}

// ApplyPast seats the members available on arrangement id's date by
// rescaling the seating of arrangement sourceID. A nil layout keeps the
// target arrangement's current grid.
func (s *Service) ApplyPast(ctx context.Context, id, sourceID uint, layout *grid.Layout) (pastmap.Result, error) {
	src, _, err := s.store.Load(ctx, sourceID)
	if err != nil {
		return pastmap.Result{}, err
	}
	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return pastmap.Result{}, err
	}
	if meta.Status.ReadOnly() {
		return pastmap.Result{}, fmt.Errorf("service: apply past to %d: %w", id, store.ErrLocked)
	}
	roster, err := s.store.AvailableMembers(ctx, meta.Date)
	if err != nil {
		return pastmap.Result{}, err
	}
	available := make([]pastmap.Member, 0, len(roster))
	for _, m := range roster {
		p, err := part.Parse(m.Part)
		if err != nil {
			return pastmap.Result{}, fmt.Errorf("service: member %s: %w", m.ID, err)
		}
		available = append(available, pastmap.Member{ID: m.ID, Name: m.Name, Part: p})
	}

	target := st.Layout()
	if layout != nil {
		target = layout.Clone()
	}
	res, err := s.mapper.Map(pastmap.Request{Source: src.State(), Available: available, Target: &target})
	if err != nil {
		return pastmap.Result{}, fmt.Errorf("service: apply past to %d: %w", id, err)
	}

	st.Commit(res.State)
	meta.Workflow.Evaluate(st.State(), meta.Status)
	if _, err := s.store.Save(ctx, id, meta.Version, st.State(), meta.Workflow); err != nil {
		return pastmap.Result{}, err
	}
	s.log.Info("past arrangement applied",
		zap.Uint("arrangement", id),
		zap.Uint("source", sourceID),
		zap.Int("matched", res.MatchedCount),
		zap.Int("available", res.TotalAvailable),
	)
	return res, nil
}

// MarkUnavailable takes memberID off a published arrangement, records the
// change and notifies the configured channels.
func (s *Service) MarkUnavailable(ctx context.Context, id uint, memberID string) (emergency.Record, error) {
	st, meta, res, err := s.planUnavailable(ctx, id, memberID)
	if err != nil {
		return emergency.Record{}, err
	}
	return s.commitEmergency(ctx, st, meta, res, false)
}

// PreviewUnavailable returns what MarkUnavailable would do without saving
// or announcing it.
func (s *Service) PreviewUnavailable(ctx context.Context, id uint, memberID string) (emergency.Result, error) {
	_, _, res, err := s.planUnavailable(ctx, id, memberID)
	return res, err
}

// MarkAvailable seats memberID on a published arrangement according to mode,
// records the change and notifies the configured channels.
func (s *Service) MarkAvailable(ctx context.Context, id uint, memberID string, mode emergency.PlaceMode) (emergency.Record, error) {
	st, meta, res, err := s.planAvailable(ctx, id, memberID, mode)
	if err != nil {
		return emergency.Record{}, err
	}
	return s.commitEmergency(ctx, st, meta, res, true)
}

// PreviewAvailable returns what MarkAvailable would do without saving or
// announcing it.
func (s *Service) PreviewAvailable(ctx context.Context, id uint, memberID string, mode emergency.PlaceMode) (emergency.Result, error) {
	_, _, res, err := s.planAvailable(ctx, id, memberID, mode)
	return res, err
}

func (s *Service) planUnavailable(ctx context.Context, id uint, memberID string) (*arrangement.Store, store.Meta, emergency.Result, error) {
	st, meta, err := s.loadPublished(ctx, id)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, err
	}
	res, err := s.engine.MarkUnavailable(st.State(), memberID)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, err
	}
	return st, meta, res, nil
}

func (s *Service) planAvailable(ctx context.Context, id uint, memberID string, mode emergency.PlaceMode) (*arrangement.Store, store.Meta, emergency.Result, error) {
	st, meta, err := s.loadPublished(ctx, id)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, err
	}
	m, err := s.store.Member(ctx, memberID)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, err
	}
	p, err := part.Parse(m.Part)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, fmt.Errorf("service: member %s: %w", m.ID, err)
	}
	res, err := s.engine.MarkAvailable(st.State(), emergency.Member{ID: m.ID, Name: m.Name, Part: p}, mode)
	if err != nil {
		return nil, store.Meta{}, emergency.Result{}, err
	}
	return st, meta, res, nil
}

func (s *Service) loadPublished(ctx context.Context, id uint) (*arrangement.Store, store.Meta, error) {
	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, store.Meta{}, err
	}
	if !meta.Status.Published() {
		return nil, store.Meta{}, fmt.Errorf("service: arrangement %d is %s: %w", id, meta.Status, ErrNotPublished)
	}
	return st, meta, nil
}

func (s *Service) commitEmergency(ctx context.Context, st *arrangement.Store, meta store.Meta, res emergency.Result, available bool) (emergency.Record, error) {
	emergency.Commit(st, res)
	if _, err := s.store.SaveEmergency(ctx, meta.ID, meta.Version, st.State(), res.Record); err != nil {
		return emergency.Record{}, err
	}
	rec := res.Record
	log := s.log.With(
		zap.Uint("arrangement", meta.ID),
		zap.String("member", rec.MemberID),
		zap.String("type", string(rec.Type)),
	)
	log.Info("emergency change saved",
		zap.String("mode", rec.ProcessMode),
		zap.Int("steps", len(rec.Steps)),
		zap.Int("moved", rec.MovedMemberCount),
	)

	// Attendance and notifications follow the saved change; failures here
	// leave the seating as saved.
	if err := s.store.SetAttendance(ctx, rec.MemberID, meta.Date, available); err != nil {
		log.Warn("attendance not updated", zap.Error(err))
	}
	ev := notify.Event{ArrangementID: meta.ID, ArrangementTitle: meta.Title, Date: meta.Date, Record: rec}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Warn("emergency change not announced", zap.Error(err))
	}
	return rec, nil
}

// AssignLeaders recomputes the row-leader seats of arrangement id and
// returns them.
func (s *Service) AssignLeaders(ctx context.Context, id uint) ([]leader.Candidate, error) {
	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta.Status.ReadOnly() {
		return nil, fmt.Errorf("service: assign leaders of %d: %w", id, store.ErrLocked)
	}
	cands := leader.Select(st.State(), s.sides, s.leaderRules)
	leader.Apply(st, cands)
	if err := meta.Workflow.Complete(arrangement.StepLeaders); err != nil {
		return nil, err
	}
	if _, err := s.store.Save(ctx, id, meta.Version, st.State(), meta.Workflow); err != nil {
		return nil, err
	}
	s.log.Info("row leaders assigned", zap.Uint("arrangement", id), zap.Int("leaders", len(cands)))
	return cands, nil
}

// SetStatus moves arrangement id to status to.
func (s *Service) SetStatus(ctx context.Context, id uint, to arrangement.Status) (int, error) {
	version, err := s.store.SetStatus(ctx, id, to)
	if err != nil {
		return 0, err
	}
	s.log.Info("arrangement status changed", zap.Uint("arrangement", id), zap.String("status", string(to)))
	return version, nil
}

// Changes returns the emergency records of arrangement id, oldest first.
func (s *Service) Changes(ctx context.Context, id uint) ([]emergency.Record, error) {
	if _, _, err := s.store.Load(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Changes(ctx, id)
}

func toRecommendMembers(roster []models.Member) ([]recommend.Member, error) {
	out := make([]recommend.Member, 0, len(roster))
	for _, m := range roster {
		p, err := part.Parse(m.Part)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.ID, err)
		}
		out = append(out, recommend.Member{
			ID:         m.ID,
			Name:       m.Name,
			Part:       p,
			Height:     m.Height,
			Experience: m.Experience,
			IsLeader:   m.IsLeader,
		})
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
	"github.com/zulandar/seatplan/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrInvalidEdit is returned for an edit request that names no
	// operation the service knows.
	ErrInvalidEdit = errors.New("service: invalid edit")
	// ErrNoHistory is returned by an undo or redo with nothing to step to.
	ErrNoHistory = errors.New("service: nothing to undo or redo")
)

// EditOp names a manual seat edit.
type EditOp string

const (
	EditPlace  EditOp = "place"
	EditMove   EditOp = "move"
	EditRemove EditOp = "remove"
	EditLeader EditOp = "leader"
	EditUndo   EditOp = "undo"
	EditRedo   EditOp = "redo"
)

// ParseEditOp accepts an edit name in any case.
func ParseEditOp(s string) (EditOp, error) {
	op := EditOp(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case EditPlace, EditMove, EditRemove, EditLeader, EditUndo, EditRedo:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidEdit, s)
}

// Edit is one manual change. Place seats MemberID at Pos, Move takes the
// occupant of Pos to To, and Remove and Leader act on Pos.
type Edit struct {
	Op       EditOp
	MemberID string
	Pos      grid.Position
	To       grid.Position
}

// WorkflowAction names a change to the authoring workflow.
type WorkflowAction string

const (
	WorkflowComplete   WorkflowAction = "complete"
	WorkflowUncomplete WorkflowAction = "uncomplete"
	WorkflowGoTo       WorkflowAction = "goto"
	WorkflowAdvance    WorkflowAction = "advance"
)

// ParseWorkflowAction accepts an action name in any case.
func ParseWorkflowAction(s string) (WorkflowAction, error) {
	a := WorkflowAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case WorkflowComplete, WorkflowUncomplete, WorkflowGoTo, WorkflowAdvance:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown workflow action %q", ErrInvalidEdit, s)
}

// sessions keeps the undo history of arrangements edited by hand. An entry
// is used only while the stored version is the one it was saved under, so
// any other write to the arrangement starts a fresh history.
type sessions struct {
	mu      sync.Mutex
	entries map[uint]session
}

type session struct {
	st      *arrangement.Store
	version int
}

func (ss *sessions) get(id uint, version int) (*arrangement.Store, bool) {
	e, ok := ss.entries[id]
	if !ok || e.version != version {
		return nil, false
	}
	return e.st, true
}

func (ss *sessions) put(id uint, st *arrangement.Store, version int) {
	if ss.entries == nil {
		ss.entries = make(map[uint]session)
	}
	ss.entries[id] = session{st: st, version: version}
}

func (ss *sessions) drop(id uint) {
	delete(ss.entries, id)
}

// EditSeats applies edits to arrangement id in order and saves the result
// as one new version. A non-zero version must match the stored one.
// Consecutive seat edits form a single undo step. Undo and redo step
// through the changes made since anything else last wrote the arrangement.
func (s *Service) EditSeats(ctx context.Context, id uint, version int, edits []Edit) (View, error) {
	if len(edits) == 0 {
		return View{}, fmt.Errorf("%w: no edits given", ErrInvalidEdit)
	}
	return s.edit(ctx, id, version, "edit seats of", func(st *arrangement.Store, _ *arrangement.Workflow) error {
		next, pending := st.State(), false
		flush := func() {
			if pending {
				st.Commit(next)
				pending = false
			}
		}
		for i, e := range edits {
			if e.Op == EditUndo || e.Op == EditRedo {
				flush()
				moved := st.Undo
				if e.Op == EditRedo {
					moved = st.Redo
				}
				if !moved() {
					return fmt.Errorf("edit %d (%s): %w", i+1, e.Op, ErrNoHistory)
				}
				next = st.State()
				continue
			}
			ev, err := s.event(ctx, e)
			if err == nil {
				next, err = arrangement.Reduce(next, ev)
			}
			if err != nil {
				return fmt.Errorf("edit %d (%s): %w", i+1, e.Op, err)
			}
			pending = true
		}
		flush()
		return nil
	})
}

// event turns a seat edit into the reducer event it stands for.
func (s *Service) event(ctx context.Context, e Edit) (arrangement.Event, error) {
	switch e.Op {
	case EditPlace:
		m, err := s.store.Member(ctx, e.MemberID)
		if err != nil {
			return nil, err
		}
		p, err := part.Parse(m.Part)
		if err != nil {
			return nil, err
		}
		return arrangement.Place{Assignment: arrangement.Assignment{MemberID: m.ID, MemberName: m.Name, Part: p, Pos: e.Pos}}, nil
	case EditMove:
		return arrangement.Move{From: e.Pos, To: e.To}, nil
	case EditRemove:
		return arrangement.Remove{Pos: e.Pos}, nil
	case EditLeader:
		return arrangement.ToggleLeader{Pos: e.Pos}, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidEdit, e.Op)
}

// SetLayout replaces the grid of arrangement id and returns the singers who
// no longer fit. Their seats are cleared.
func (s *Service) SetLayout(ctx context.Context, id uint, version int, layout grid.Layout) (View, []arrangement.Assignment, error) {
	if err := grid.Validate(layout); err != nil {
		return View{}, nil, fmt.Errorf("service: set layout of %d: %w", id, err)
	}
	var dropped []arrangement.Assignment
	v, err := s.edit(ctx, id, version, "set layout of", func(st *arrangement.Store, wf *arrangement.Workflow) error {
		var err error
		if dropped, err = st.SetLayout(layout.Clone()); err != nil {
			return err
		}
		return wf.Complete(arrangement.StepAdjustGrid)
	})
	if err != nil {
		return View{}, nil, err
	}
	if len(dropped) > 0 {
		s.log.Info("layout change unseated singers", zap.Uint("arrangement", id), zap.Int("dropped", len(dropped)))
	}
	return v, dropped, nil
}

// Workflow moves arrangement id through its authoring steps. step is
// ignored by WorkflowAdvance.
func (s *Service) Workflow(ctx context.Context, id uint, version int, action WorkflowAction, step int) (View, error) {
	return s.edit(ctx, id, version, "update workflow of", func(_ *arrangement.Store, wf *arrangement.Workflow) error {
		switch action {
		case WorkflowComplete:
			return wf.Complete(step)
		case WorkflowUncomplete:
			return wf.Uncomplete(step)
		case WorkflowGoTo:
			return wf.GoTo(step)
		case WorkflowAdvance:
			return wf.Advance()
		}
		return fmt.Errorf("%w: unknown workflow action %q", ErrInvalidEdit, action)
	})
}

// edit runs fn against the editable copy of arrangement id and saves the
// result under the loaded version. The arrangement is left untouched when
// fn fails.
func (s *Service) edit(ctx context.Context, id uint, version int, what string, fn func(*arrangement.Store, *arrangement.Workflow) error) (View, error) {
	s.edits.mu.Lock()
	defer s.edits.mu.Unlock()

	st, meta, err := s.store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if meta.Status.ReadOnly() {
		return View{}, fmt.Errorf("service: %s %d: %w", what, id, store.ErrLocked)
	}
	if version != 0 && version != meta.Version {
		return View{}, fmt.Errorf("service: %s %d: have version %d, stored %d: %w", what, id, version, meta.Version, store.ErrVersionConflict)
	}
	if cached, ok := s.edits.get(id, meta.Version); ok {
		st = cached
	}
	wf := meta.Workflow
	if wf == nil {
		wf = arrangement.NewWorkflow(true)
	}

	if err := fn(st, wf); err != nil {
		s.edits.drop(id)
		return View{}, fmt.Errorf("service: %s %d: %w", what, id, err)
	}
	wf.Evaluate(st.State(), meta.Status)
	next, err := s.store.Save(ctx, id, meta.Version, st.State(), wf)
	if err != nil {
		s.edits.drop(id)
		return View{}, err
	}
	s.edits.put(id, st, next)

	meta.Version = next
	meta.Workflow = wf
	s.log.Debug("arrangement edited", zap.Uint("arrangement", id), zap.Int("version", next))
	return View{Meta: meta, State: st.State()}, nil
}

package arrangement

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Workflow errors.
var (
	ErrInvalidStep = errors.New("arrangement: invalid workflow step")
	ErrStepLocked  = errors.New("arrangement: workflow step locked")
)

// Workflow steps of the guided authoring pipeline.
const (
	StepDistributeRows = iota + 1
	StepAdjustGrid
	StepAutoPlace
	StepManualFix
	StepRowOffsets
	StepLeaders
	StepShare
)

const (
	FirstStep = StepDistributeRows
	LastStep  = StepShare
)

var stepNames = map[int]string{
	StepDistributeRows: "distribute rows",
	StepAdjustGrid:     "adjust grid",
	StepAutoPlace:      "auto-place",
	StepManualFix:      "manual fix-ups",
	StepRowOffsets:     "row offsets",
	StepLeaders:        "row leaders",
	StepShare:          "share",
}

// StepName returns a human label for step.
func StepName(step int) string {
	if n, ok := stepNames[step]; ok {
		return n
	}
	return fmt.Sprintf("step %d", step)
}

// Workflow tracks progress through the authoring steps.
type Workflow struct {
	Current   int
	Completed map[int]bool
	Wizard    bool
}

// NewWorkflow returns a workflow positioned at the first step.
func NewWorkflow(wizard bool) *Workflow {
	return &Workflow{Current: FirstStep, Completed: make(map[int]bool), Wizard: wizard}
}

func validStep(step int) error {
	if step < FirstStep || step > LastStep {
		return fmt.Errorf("%w: %d out of range %d..%d", ErrInvalidStep, step, FirstStep, LastStep)
	}
	return nil
}

// Complete marks step done. In wizard mode finishing the current step moves
// on to the next one.
func (w *Workflow) Complete(step int) error {
	if err := validStep(step); err != nil {
		return err
	}
	if w.Completed == nil {
		w.Completed = make(map[int]bool)
	}
	w.Completed[step] = true
	if w.Wizard && step == w.Current && w.Current < LastStep {
		w.Current++
	}
	return nil
}

// Uncomplete clears step.
func (w *Workflow) Uncomplete(step int) error {
	if err := validStep(step); err != nil {
		return err
	}
	delete(w.Completed, step)
	return nil
}

// IsComplete reports whether step is done.
func (w *Workflow) IsComplete(step int) bool {
	return w.Completed[step]
}

// firstIncomplete returns the lowest step not yet done, or LastStep.
func (w *Workflow) firstIncomplete() int {
	for s := FirstStep; s <= LastStep; s++ {
		if !w.Completed[s] {
			return s
		}
	}
	return LastStep
}

// GoTo moves to step. In wizard mode only completed steps and the first
// incomplete step are reachable.
func (w *Workflow) GoTo(step int) error {
	if err := validStep(step); err != nil {
		return err
	}
	if w.Wizard && !w.Completed[step] && step != w.firstIncomplete() {
		return fmt.Errorf("%w: step %d (%s) waits for earlier steps", ErrStepLocked, step, StepName(step))
	}
	w.Current = step
	return nil
}

// Advance moves to the next step.
func (w *Workflow) Advance() error {
	if w.Current >= LastStep {
		return fmt.Errorf("%w: already at the last step", ErrStepLocked)
	}
	if w.Wizard && !w.Completed[w.Current] {
		return fmt.Errorf("%w: step %d (%s) is not complete", ErrStepLocked, w.Current, StepName(w.Current))
	}
	w.Current++
	return nil
}

// Evaluate marks the steps whose completion can be derived from the
// arrangement itself. Other steps are completed by hand.
func (w *Workflow) Evaluate(s State, status Status) []int {
	var done []int
	check := func(step int, ok bool) {
		if ok && !w.Completed[step] {
			w.Complete(step)
			done = append(done, step)
		}
	}
	check(StepDistributeRows, s.Layout.Recommended)
	check(StepAutoPlace, len(s.Seats) > 0)
	check(StepShare, status == StatusShared || status == StatusConfirmed)
	return done
}

// CompletedSteps returns the completed steps in ascending order.
func (w *Workflow) CompletedSteps() []int {
	out := make([]int, 0, len(w.Completed))
	for s, ok := range w.Completed {
		if ok {
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

type workflowJSON struct {
	CurrentStep    int   `json:"currentStep"`
	CompletedSteps []int `json:"completedSteps"`
	IsWizardMode   bool  `json:"isWizardMode"`
}

func (w Workflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(workflowJSON{
		CurrentStep:    w.Current,
		CompletedSteps: w.CompletedSteps(),
		IsWizardMode:   w.Wizard,
	})
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	var in workflowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("arrangement: decode workflow: %w", err)
	}
	if in.CurrentStep == 0 {
		in.CurrentStep = FirstStep
	}
	if err := validStep(in.CurrentStep); err != nil {
		return err
	}
	w.Current = in.CurrentStep
	w.Wizard = in.IsWizardMode
	w.Completed = make(map[int]bool, len(in.CompletedSteps))
	for _, s := range in.CompletedSteps {
		if err := validStep(s); err != nil {
			return err
		}
		w.Completed[s] = true
	}
	return nil
}

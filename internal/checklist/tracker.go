package checklist

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Branch identifies one of the two follow-up searches of the branch step.
type Branch string

const (
	BranchInternal Branch = "internal"
	BranchExternal Branch = "external"
)

var (
	ErrStepOutOfRange = errors.New("step index out of range")
	ErrItemOutOfRange = errors.New("sub-item index out of range")
	ErrUnknownBranch  = errors.New("unknown branch")
)

// SubItem addresses one required action of one step.
type SubItem struct {
	Step int
	Item int
}

// Tracker holds the operator's progress through a fixed sequence of steps.
// Completion and its timestamp share one map, so a step is completed iff it is stamped.
// Tracker is not safe for concurrent use.
type Tracker struct {
	itemCounts []int
	now        func() time.Time

	completed map[int]time.Time
	subItems  map[SubItem]bool
	branches  map[Branch]time.Time
	cursor    int
}

// NewTracker creates a tracker for len(itemCounts) steps, where itemCounts[i] is the
// number of sub-items of step i.
func NewTracker(itemCounts []int, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		itemCounts: append([]int(nil), itemCounts...),
		now:        now,
	}
	t.Reset()
	return t
}

func (t *Tracker) TotalSteps() int {
	return len(t.itemCounts)
}

// ToggleStep flips the completion of a step. Steps may be completed in any order.
func (t *Tracker) ToggleStep(index int) (bool, error) {
	if err := t.checkStep(index); err != nil {
		return false, err
	}
	if _, done := t.completed[index]; done {
		delete(t.completed, index)
		return false, nil
	}
	t.completed[index] = t.now()
	return true, nil
}

// ToggleSubItem flips a sub-item flag. It never changes the completion of the step itself.
func (t *Tracker) ToggleSubItem(step, item int) (bool, error) {
	if err := t.checkStep(step); err != nil {
		return false, err
	}
	if item < 0 || item >= t.itemCounts[step] {
		return false, fmt.Errorf("%w: step %d item %d", ErrItemOutOfRange, step, item)
	}
	key := SubItem{Step: step, Item: item}
	if t.subItems[key] {
		delete(t.subItems, key)
		return false, nil
	}
	t.subItems[key] = true
	return true, nil
}

// RecordBranchActivation stamps the activation time of a branch, overwriting earlier stamps.
func (t *Tracker) RecordBranchActivation(b Branch) (time.Time, error) {
	if b != BranchInternal && b != BranchExternal {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownBranch, b)
	}
	at := t.now()
	t.branches[b] = at
	return at, nil
}

// Progress returns round(100 * completed / total).
func (t *Tracker) Progress() int {
	if len(t.itemCounts) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(t.completed)) / float64(len(t.itemCounts))))
}

func (t *Tracker) IsCompleted(index int) bool {
	_, ok := t.completed[index]
	return ok
}

// CompletedAt returns the completion time of a step, if it is completed.
func (t *Tracker) CompletedAt(index int) (time.Time, bool) {
	at, ok := t.completed[index]
	return at, ok
}

// Completed returns the completed step indices in ascending order.
func (t *Tracker) Completed() []int {
	out := make([]int, 0, len(t.completed))
	for i := range t.completed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (t *Tracker) SubItemChecked(step, item int) bool {
	return t.subItems[SubItem{Step: step, Item: item}]
}

func (t *Tracker) BranchActivatedAt(b Branch) (time.Time, bool) {
	at, ok := t.branches[b]
	return at, ok
}

// Reset clears all progress and moves the cursor back to the first step.
func (t *Tracker) Reset() {
	t.completed = make(map[int]time.Time)
	t.subItems = make(map[SubItem]bool)
	t.branches = make(map[Branch]time.Time)
	t.cursor = 0
}

func (t *Tracker) Cursor() int {
	return t.cursor
}

func (t *Tracker) Select(index int) error {
	if err := t.checkStep(index); err != nil {
		return err
	}
	t.cursor = index
	return nil
}

// SelectNext advances the cursor. At the last step it leaves the cursor in place and
// reports that the procedure is finished.
func (t *Tracker) SelectNext() (finished bool) {
	if t.cursor >= len(t.itemCounts)-1 {
		return true
	}
	t.cursor++
	return false
}

func (t *Tracker) SelectPrev() {
	if t.cursor > 0 {
		t.cursor--
	}
}

func (t *Tracker) checkStep(index int) error {
	if index < 0 || index >= len(t.itemCounts) {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, index)
	}
	return nil
}

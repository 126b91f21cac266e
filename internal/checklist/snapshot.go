package checklist

import (
	"sort"
	"time"
)

type StepState struct {
	Index       int        `json:"index"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Items       []bool     `json:"items"`
}

// Snapshot is a copy of the tracker state, safe to hand to the view layer.
type Snapshot struct {
	Steps    []StepState          `json:"steps"`
	Branches map[Branch]time.Time `json:"branches"`
	Cursor   int                  `json:"cursor"`
	Progress int                  `json:"progress"`
}

func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Steps:    make([]StepState, len(t.itemCounts)),
		Branches: make(map[Branch]time.Time, len(t.branches)),
		Cursor:   t.cursor,
		Progress: t.Progress(),
	}
	for i, n := range t.itemCounts {
		st := StepState{Index: i, Items: make([]bool, n)}
		if at, ok := t.completed[i]; ok {
			at := at
			st.Completed = true
			st.CompletedAt = &at
		}
		for j := range st.Items {
			st.Items[j] = t.subItems[SubItem{Step: i, Item: j}]
		}
		s.Steps[i] = st
	}
	for b, at := range t.branches {
		s.Branches[b] = at
	}
	return s
}

// Timeline lists completed steps ordered by completion time.
func (s Snapshot) Timeline() []StepState {
	var out []StepState
	for _, st := range s.Steps {
		if st.Completed {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out
}

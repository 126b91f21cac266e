package response

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"elopement-response/internal/checklist"
	"elopement-response/internal/drafting"
	"elopement-response/internal/protocol"
	"elopement-response/internal/speech"
)

// View selects which screen of the tool is shown.
type View string

const (
	ViewHome      View = "home"
	ViewRoles     View = "roles"
	ViewRoutes    View = "routes"
	ViewChecklist View = "checklist"
)

func (v View) Valid() bool {
	switch v {
	case ViewHome, ViewRoles, ViewRoutes, ViewChecklist:
		return true
	}
	return false
}

type RouteView struct {
	Mode protocol.SearchMode `json:"mode"`
	Unit string              `json:"unit"`
}

// Session is the state of one browser tab. The tracker and the drafting workspace never
// share state; mu serializes mutations coming from concurrent requests.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	view       View
	route      RouteView
	cycleStart time.Time
	finishedAt time.Time
	tracker    *checklist.Tracker
	draft      *drafting.Workspace
	player     *speech.Player
	clips      *speech.ClipBuffer
}

type SessionView struct {
	ID             uuid.UUID              `json:"id"`
	CreatedAt      time.Time              `json:"created_at"`
	View           View                   `json:"view"`
	Route          RouteView              `json:"route"`
	CycleStartedAt time.Time              `json:"cycle_started_at"`
	FinishedAt     *time.Time             `json:"finished_at,omitempty"`
	Checklist      checklist.Snapshot     `json:"checklist"`
	Draft          drafting.WorkspaceView `json:"draft"`
	Phrases        []drafting.Phrase      `json:"phrases"`
	RemoteDrafting bool                   `json:"remote_drafting"`
	Speaking       *uint64                `json:"speaking,omitempty"`
}

// IncidentStep is one step of a finished response cycle.
type IncidentStep struct {
	Index       int        `json:"index"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Items       []bool     `json:"items"`
}

// Incident summarizes a finished response cycle for the report and the archive.
type Incident struct {
	ID         uuid.UUID                      `json:"id"`
	SessionID  uuid.UUID                      `json:"session_id"`
	StartedAt  time.Time                      `json:"started_at"`
	FinishedAt time.Time                      `json:"finished_at"`
	Patient    drafting.PatientDraftInfo      `json:"patient"`
	Draft      string                         `json:"draft"`
	Steps      []IncidentStep                 `json:"steps"`
	Branches   map[checklist.Branch]time.Time `json:"branches"`
	Progress   int                            `json:"progress"`
}

// Timeline returns the completed steps ordered by completion time.
func (i Incident) Timeline() []IncidentStep {
	snap := checklist.Snapshot{Steps: make([]checklist.StepState, len(i.Steps))}
	for n, st := range i.Steps {
		snap.Steps[n] = checklist.StepState{Index: n, Completed: st.Completed, CompletedAt: st.CompletedAt}
	}
	var done []IncidentStep
	for _, st := range snap.Timeline() {
		done = append(done, i.Steps[st.Index])
	}
	return done
}

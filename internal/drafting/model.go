package drafting

import (
	"fmt"
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "男"
	GenderFemale Gender = "女"
)

// PatientDraftInfo holds the operator-entered fields of the notification draft.
type PatientDraftInfo struct {
	Name      string `json:"name"`
	Gender    Gender `json:"gender"`
	IDNum     string `json:"id_num"`
	Clothing  string `json:"clothing"`
	Location  string `json:"location"`
	Direction string `json:"direction"`
}

// Field names accepted by SetField.
const (
	FieldName      = "name"
	FieldIDNum     = "id_num"
	FieldClothing  = "clothing"
	FieldLocation  = "location"
	FieldDirection = "direction"
)

func (i PatientDraftInfo) Validate() error {
	if i.Gender != GenderMale && i.Gender != GenderFemale {
		return fmt.Errorf("%w: %q", ErrInvalidGender, i.Gender)
	}
	return nil
}

// SetField sets one free-text field by name.
func (i *PatientDraftInfo) SetField(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldName:
		i.Name = value
	case FieldIDNum:
		i.IDNum = value
	case FieldClothing:
		i.Clothing = value
	case FieldLocation:
		i.Location = value
	case FieldDirection:
		i.Direction = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Status of one draft-generation cycle.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// FailedDraftText replaces the draft when generation exhausts its retries.
const FailedDraftText = "無法生成草稿。"

// CopyAckDuration is how long the "copied" acknowledgment stays visible.
const CopyAckDuration = 2 * time.Second

// Outcome is the terminal result of one generation.
type Outcome struct {
	Status Status `json:"status"`
	Text   string `json:"text"`
}

// Workspace is the drafting form of one session: fields, last result and copy acknowledgment.
// It is not safe for concurrent use.
type Workspace struct {
	info     PatientDraftInfo
	status   Status
	text     string
	copiedAt time.Time
	seq      uint64
	now      func() time.Time
}

func NewWorkspace(now func() time.Time) *Workspace {
	if now == nil {
		now = time.Now
	}
	return &Workspace{
		info:   PatientDraftInfo{Gender: GenderMale},
		status: StatusIdle,
		now:    now,
	}
}

func (w *Workspace) Info() PatientDraftInfo {
	return w.info
}

func (w *Workspace) SetInfo(info PatientDraftInfo) error {
	if info.Gender == "" {
		info.Gender = GenderMale
	}
	if err := info.Validate(); err != nil {
		return err
	}
	w.info = info
	return nil
}

func (w *Workspace) SetField(field, value string) error {
	return w.info.SetField(field, value)
}

// Begin moves the workspace to Loading and returns the fields to draft from with a
// ticket identifying this generation. Loading is not entered without a name.
func (w *Workspace) Begin() (PatientDraftInfo, uint64, error) {
	if strings.TrimSpace(w.info.Name) == "" {
		return PatientDraftInfo{}, 0, ErrPreconditionNotMet
	}
	w.seq++
	w.status = StatusLoading
	return w.info, w.seq, nil
}

// Finish stores the outcome of a generation. Generations are not serialized, so
// whichever completes last wins; the ticket only reports whether a newer one is pending.
func (w *Workspace) Finish(ticket uint64, o Outcome) (superseded bool) {
	w.text = o.Text
	w.copiedAt = time.Time{}
	if ticket < w.seq {
		return true
	}
	w.status = o.Status
	return false
}

// MarkCopied returns the draft text for the clipboard and starts the acknowledgment.
func (w *Workspace) MarkCopied() (string, error) {
	if w.text == "" {
		return "", ErrNoDraft
	}
	w.copiedAt = w.now()
	return w.text, nil
}

func (w *Workspace) Copied() bool {
	if w.copiedAt.IsZero() {
		return false
	}
	return w.now().Sub(w.copiedAt) < CopyAckDuration
}

func (w *Workspace) Draft() string {
	return w.text
}

type WorkspaceView struct {
	Info   PatientDraftInfo `json:"info"`
	Status Status           `json:"status"`
	Draft  string           `json:"draft"`
	Copied bool             `json:"copied"`
	Ready  bool             `json:"ready"`
}

func (w *Workspace) View() WorkspaceView {
	return WorkspaceView{
		Info:   w.info,
		Status: w.status,
		Draft:  w.text,
		Copied: w.Copied(),
		Ready:  strings.TrimSpace(w.info.Name) != "" && w.status != StatusLoading,
	}
}

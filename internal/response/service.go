package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elopement-response/internal/checklist"
	"elopement-response/internal/drafting"
	"elopement-response/internal/protocol"
	"elopement-response/internal/speech"
)

// LaunchAnnouncement is spoken whenever a response cycle starts.
const LaunchAnnouncement = "緊急廣播。現在啟動三三三協尋機制，請同仁注意Juiker群組訊息。"

var (
	ErrInvalidView       = errors.New("invalid view")
	ErrNothingToSpeak    = errors.New("nothing to speak")
	ErrUnknownPhrase     = errors.New("unknown quick-broadcast phrase")
	ErrDictationDisabled = errors.New("dictation is not configured")
	ErrBroadcastFailed   = errors.New("staff broadcast failed")
)

// ReportService delivers notifications and incident reports to the staff channel.
type ReportService interface {
	Broadcast(ctx context.Context, text string) error
	SendIncidentReport(ctx context.Context, inc Incident) error
}

// SpeechConfig builds the per-session players.
type SpeechConfig struct {
	Synthesizer  speech.Synthesizer
	Transcriber  speech.Transcriber
	Voice        string
	FallbackHold time.Duration
}

type Service interface {
	Protocol() *protocol.Protocol
	Start(ctx context.Context) (SessionView, error)
	Get(id uuid.UUID) (SessionView, error)
	Restart(id uuid.UUID) (SessionView, error)
	Navigate(id uuid.UUID, view View, route RouteView) (SessionView, error)
	ToggleStep(id uuid.UUID, step int) (SessionView, error)
	ToggleSubItem(id uuid.UUID, step, item int) (SessionView, error)
	ActivateBranch(id uuid.UUID, branch checklist.Branch) (SessionView, error)
	Select(id uuid.UUID, step int) (SessionView, error)
	SelectNext(id uuid.UUID) (SessionView, error)
	SelectPrev(id uuid.UUID) (SessionView, error)
	UpdateDraftInfo(id uuid.UUID, info drafting.PatientDraftInfo) (SessionView, error)
	GenerateDraft(ctx context.Context, id uuid.UUID) (SessionView, error)
	CopyDraft(id uuid.UUID) (string, SessionView, error)
	BroadcastDraft(ctx context.Context, id uuid.UUID) error
	Dictate(ctx context.Context, id uuid.UUID, field string, audio []byte, fileName string) (SessionView, error)
	Speak(id uuid.UUID, text, phrase string) (SessionView, error)
	CurrentClip(id uuid.UUID) (speech.Clip, bool, error)
	StopSpeech(id uuid.UUID) (SessionView, error)
}

type service struct {
	repo      Repository
	archive   Archive
	proto     *protocol.Protocol
	drafts    *drafting.Service
	speechCfg SpeechConfig
	reportSvc ReportService
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, archive Archive, proto *protocol.Protocol, drafts *drafting.Service,
	speechCfg SpeechConfig, report ReportService, logger *zap.Logger) Service {
	if speechCfg.Synthesizer == nil {
		speechCfg.Synthesizer = speech.Disabled{}
	}
	return &service{
		repo:      repo,
		archive:   archive,
		proto:     proto,
		drafts:    drafts,
		speechCfg: speechCfg,
		reportSvc: report,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Protocol() *protocol.Protocol {
	return s.proto
}

// Start opens a session and launches a response cycle.
func (s *service) Start(ctx context.Context) (SessionView, error) {
	steps := s.proto.Steps()
	itemCounts := make([]int, len(steps))
	for i, st := range steps {
		itemCounts[i] = len(st.Actions)
	}

	clips := speech.NewClipBuffer(s.speechCfg.FallbackHold)
	sess := &Session{
		ID:        uuid.New(),
		CreatedAt: s.now(),
		route:     RouteView{Mode: protocol.SearchInternal, Unit: protocol.AllUnits},
		tracker:   checklist.NewTracker(itemCounts, s.now),
		draft:     drafting.NewWorkspace(s.now),
		clips:     clips,
		player:    speech.NewPlayer(s.speechCfg.Synthesizer, clips, s.speechCfg.Voice, s.logger.Named("speech")),
	}
	sess.mu.Lock()
	s.launchLocked(sess)
	view := s.viewLocked(sess)
	sess.mu.Unlock()

	s.repo.Save(sess)
	s.logger.Info("response cycle started", zap.String("session", sess.ID.String()))
	return view, nil
}

func (s *service) Get(id uuid.UUID) (SessionView, error) {
	return s.update(id, func(*Session) error { return nil })
}

// Restart resets the checklist and launches a new response cycle.
func (s *service) Restart(id uuid.UUID) (SessionView, error) {
	view, err := s.update(id, func(sess *Session) error {
		s.launchLocked(sess)
		return nil
	})
	if err == nil {
		s.logger.Info("response cycle restarted", zap.String("session", id.String()))
	}
	return view, err
}

func (s *service) Navigate(id uuid.UUID, view View, route RouteView) (SessionView, error) {
	if !view.Valid() {
		return SessionView{}, fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	if view == ViewRoutes {
		if route.Mode == "" {
			route.Mode = protocol.SearchInternal
		}
		if route.Unit == "" {
			route.Unit = protocol.AllUnits
		}
		if _, err := s.proto.Routes(route.Mode, route.Unit); err != nil {
			return SessionView{}, err
		}
	}
	return s.update(id, func(sess *Session) error {
		sess.view = view
		if view == ViewRoutes {
			sess.route = route
		}
		return nil
	})
}

func (s *service) ToggleStep(id uuid.UUID, step int) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		_, err := sess.tracker.ToggleStep(step)
		return err
	})
}

func (s *service) ToggleSubItem(id uuid.UUID, step, item int) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		_, err := sess.tracker.ToggleSubItem(step, item)
		return err
	})
}

func (s *service) ActivateBranch(id uuid.UUID, branch checklist.Branch) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		if _, err := sess.tracker.RecordBranchActivation(branch); err != nil {
			return err
		}
		sess.route = RouteView{Mode: protocol.SearchMode(branch), Unit: protocol.AllUnits}
		return nil
	})
}

func (s *service) Select(id uuid.UUID, step int) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		return sess.tracker.Select(step)
	})
}

// SelectNext advances the cursor; past the last step the cycle finishes and the
// operator returns home while the report is delivered in the background.
func (s *service) SelectNext(id uuid.UUID) (SessionView, error) {
	var (
		inc      Incident
		finished bool
	)
	view, err := s.update(id, func(sess *Session) error {
		if !sess.tracker.SelectNext() {
			return nil
		}
		finished = true
		sess.finishedAt = s.now()
		sess.view = ViewHome
		inc = s.incidentLocked(sess)
		return nil
	})
	if err != nil || !finished {
		return view, err
	}

	go s.deliverIncident(inc)
	return view, nil
}

func (s *service) SelectPrev(id uuid.UUID) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		sess.tracker.SelectPrev()
		return nil
	})
}

func (s *service) UpdateDraftInfo(id uuid.UUID, info drafting.PatientDraftInfo) (SessionView, error) {
	info.Name = strings.TrimSpace(info.Name)
	return s.update(id, func(sess *Session) error {
		return sess.draft.SetInfo(info)
	})
}

// GenerateDraft runs outside the session lock so the checklist stays usable meanwhile.
// The request is not cancelled when the caller goes away; a late result still lands.
func (s *service) GenerateDraft(ctx context.Context, id uuid.UUID) (SessionView, error) {
	sess, err := s.repo.Get(id)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	info, ticket, err := sess.draft.Begin()
	sess.mu.Unlock()
	if err != nil {
		return SessionView{}, err
	}

	outcome, err := s.drafts.Generate(context.WithoutCancel(ctx), info)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if superseded := sess.draft.Finish(ticket, outcome); superseded {
		s.logger.Debug("draft finished while a newer request is pending", zap.String("session", id.String()))
	}
	return s.viewLocked(sess), nil
}

func (s *service) CopyDraft(id uuid.UUID) (string, SessionView, error) {
	var text string
	view, err := s.update(id, func(sess *Session) error {
		var err error
		text, err = sess.draft.MarkCopied()
		return err
	})
	return text, view, err
}

func (s *service) BroadcastDraft(ctx context.Context, id uuid.UUID) error {
	sess, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	text := sess.draft.Draft()
	sess.mu.Unlock()

	if text == "" || text == drafting.FailedDraftText {
		return drafting.ErrNoDraft
	}
	if err := s.reportSvc.Broadcast(ctx, text); err != nil {
		return fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}
	s.logger.Info("draft broadcast to staff channel", zap.String("session", id.String()))
	return nil
}

func (s *service) Dictate(ctx context.Context, id uuid.UUID, field string, audio []byte, fileName string) (SessionView, error) {
	if s.speechCfg.Transcriber == nil {
		return SessionView{}, ErrDictationDisabled
	}
	if err := (&drafting.PatientDraftInfo{}).SetField(field, ""); err != nil {
		return SessionView{}, err
	}
	if _, err := s.repo.Get(id); err != nil {
		return SessionView{}, err
	}

	text, err := s.speechCfg.Transcriber.Transcribe(ctx, audio, fileName)
	if err != nil {
		return SessionView{}, fmt.Errorf("transcription failed: %w", err)
	}
	return s.update(id, func(sess *Session) error {
		return sess.draft.SetField(field, text)
	})
}

// Speak reads text aloud, or the named quick-broadcast phrase when phrase is set.
func (s *service) Speak(id uuid.UUID, text, phrase string) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		if phrase != "" {
			p, ok := drafting.LookupPhrase(sess.draft.Info(), phrase)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownPhrase, phrase)
			}
			text = p.Spoken
		}
		if strings.TrimSpace(text) == "" {
			return ErrNothingToSpeak
		}
		sess.player.Speak(text)
		return nil
	})
}

func (s *service) CurrentClip(id uuid.UUID) (speech.Clip, bool, error) {
	sess, err := s.repo.Get(id)
	if err != nil {
		return speech.Clip{}, false, err
	}
	clip, ok := sess.clips.Current()
	return clip, ok, nil
}

func (s *service) StopSpeech(id uuid.UUID) (SessionView, error) {
	return s.update(id, func(sess *Session) error {
		sess.player.Stop()
		return nil
	})
}

func (s *service) update(id uuid.UUID, fn func(sess *Session) error) (SessionView, error) {
	sess, err := s.repo.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := fn(sess); err != nil {
		return SessionView{}, err
	}
	return s.viewLocked(sess), nil
}

func (s *service) launchLocked(sess *Session) {
	sess.tracker.Reset()
	sess.view = ViewChecklist
	sess.cycleStart = s.now()
	sess.finishedAt = time.Time{}
	sess.player.Speak(LaunchAnnouncement)
}

func (s *service) viewLocked(sess *Session) SessionView {
	v := SessionView{
		ID:             sess.ID,
		CreatedAt:      sess.CreatedAt,
		View:           sess.view,
		Route:          sess.route,
		CycleStartedAt: sess.cycleStart,
		Checklist:      sess.tracker.Snapshot(),
		Draft:          sess.draft.View(),
		Phrases:        drafting.QuickBroadcastPhrases(sess.draft.Info()),
		RemoteDrafting: s.drafts.RemoteEnabled(),
	}
	if !sess.finishedAt.IsZero() {
		at := sess.finishedAt
		v.FinishedAt = &at
	}
	if pb, ok := sess.player.Active(); ok {
		id := pb.ID
		v.Speaking = &id
	}
	return v
}

func (s *service) incidentLocked(sess *Session) Incident {
	snap := sess.tracker.Snapshot()
	steps := s.proto.Steps()
	inc := Incident{
		ID:         uuid.New(),
		SessionID:  sess.ID,
		StartedAt:  sess.cycleStart,
		FinishedAt: sess.finishedAt,
		Patient:    sess.draft.Info(),
		Draft:      sess.draft.Draft(),
		Steps:      make([]IncidentStep, len(snap.Steps)),
		Branches:   snap.Branches,
		Progress:   snap.Progress,
	}
	for i, st := range snap.Steps {
		inc.Steps[i] = IncidentStep{
			Index:       st.Index,
			Title:       steps[i].Title,
			Completed:   st.Completed,
			CompletedAt: st.CompletedAt,
			Items:       st.Items,
		}
	}
	return inc
}

// deliverIncident reports and archives a finished cycle with a detached context.
func (s *service) deliverIncident(inc Incident) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := s.logger.With(zap.String("incident", inc.ID.String()), zap.String("session", inc.SessionID.String()))
	logger.Info("response cycle finished", zap.Int("progress", inc.Progress))

	if err := s.reportSvc.SendIncidentReport(ctx, inc); err != nil {
		logger.Error("failed to send incident report", zap.Error(err))
	}
	if err := s.archive.Save(ctx, inc); err != nil {
		logger.Error("failed to archive incident", zap.Error(err))
	}
}

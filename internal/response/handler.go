package response

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"elopement-response/internal/checklist"
	"elopement-response/internal/drafting"
	"elopement-response/internal/protocol"
)

const maxAudioUpload = 10 << 20

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ListSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Protocol().Steps())
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Protocol().Roles())
}

type RoutesResponse struct {
	Mode   protocol.SearchMode   `json:"mode"`
	Unit   string                `json:"unit"`
	Units  []protocol.Unit       `json:"units"`
	Routes []protocol.UnitRoutes `json:"routes"`
}

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	mode := protocol.SearchMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = protocol.SearchInternal
	}
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = protocol.AllUnits
	}

	p := h.svc.Protocol()
	routes, err := p.Routes(mode, unit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoutesResponse{Mode: mode, Unit: unit, Units: p.Units(mode), Routes: routes})
}

func (h *Handler) StartResponse(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Start(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.Get(id)
	})
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.svc.Restart)
}

type NavigateRequest struct {
	View View                `json:"view"`
	Mode protocol.SearchMode `json:"mode"`
	Unit string              `json:"unit"`
}

func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.Navigate(id, req.View, RouteView{Mode: req.Mode, Unit: req.Unit})
	})
}

func (h *Handler) ToggleStep(w http.ResponseWriter, r *http.Request) {
	step, ok := intParam(w, r, "step")
	if !ok {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.ToggleStep(id, step)
	})
}

func (h *Handler) ToggleSubItem(w http.ResponseWriter, r *http.Request) {
	step, ok := intParam(w, r, "step")
	if !ok {
		return
	}
	item, ok := intParam(w, r, "item")
	if !ok {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.ToggleSubItem(id, step, item)
	})
}

func (h *Handler) ActivateBranch(w http.ResponseWriter, r *http.Request) {
	branch := checklist.Branch(chi.URLParam(r, "branch"))
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.ActivateBranch(id, branch)
	})
}

type SelectRequest struct {
	Step int `json:"step"`
}

func (h *Handler) SelectStep(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.Select(id, req.Step)
	})
}

func (h *Handler) SelectNext(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.svc.SelectNext)
}

func (h *Handler) SelectPrev(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.svc.SelectPrev)
}

func (h *Handler) UpdateDraftInfo(w http.ResponseWriter, r *http.Request) {
	var req drafting.PatientDraftInfo
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.UpdateDraftInfo(id, req)
	})
}

func (h *Handler) GenerateDraft(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.GenerateDraft(r.Context(), id)
	})
}

type CopyResponse struct {
	Text    string      `json:"text"`
	Session SessionView `json:"session"`
}

func (h *Handler) CopyDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	text, view, err := h.svc.CopyDraft(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CopyResponse{Text: text, Session: view})
}

func (h *Handler) BroadcastDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.BroadcastDraft(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Dictate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "audio file too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	view, err := h.svc.Dictate(r.Context(), id, chi.URLParam(r, "field"), buf.Bytes(), header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type SpeakRequest struct {
	Text   string `json:"text"`
	Phrase string `json:"phrase"`
}

func (h *Handler) Speak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withSession(w, r, func(id uuid.UUID) (SessionView, error) {
		return h.svc.Speak(id, req.Text, req.Phrase)
	})
}

type ClipResponse struct {
	ID          uint64    `json:"id"`
	Text        string    `json:"text"`
	StartedAt   time.Time `json:"started_at"`
	MIMEType    string    `json:"mime_type"`
	AudioBase64 string    `json:"audio_base64"`
}

// CurrentClip returns the clip the front end should be playing, or 204 when silent.
func (h *Handler) CurrentClip(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	clip, playing, err := h.svc.CurrentClip(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !playing {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ClipResponse{
		ID:          clip.ID,
		Text:        clip.Text,
		StartedAt:   clip.StartedAt,
		MIMEType:    clip.Audio.MIMEType,
		AudioBase64: base64.StdEncoding.EncodeToString(clip.Audio.Data),
	})
}

func (h *Handler) StopSpeech(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, h.svc.StopSpeech)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/protocol", func(r chi.Router) {
		r.Get("/steps", h.ListSteps)
		r.Get("/roles", h.ListRoles)
		r.Get("/routes", h.ListRoutes)
	})

	r.Post("/responses", h.StartResponse)
	r.Route("/responses/{id}", func(r chi.Router) {
		r.Get("/", h.GetResponse)
		r.Post("/restart", h.Restart)
		r.Put("/view", h.Navigate)

		r.Post("/steps/{step}/toggle", h.ToggleStep)
		r.Post("/steps/{step}/items/{item}/toggle", h.ToggleSubItem)
		r.Post("/branches/{branch}", h.ActivateBranch)

		r.Post("/cursor/select", h.SelectStep)
		r.Post("/cursor/next", h.SelectNext)
		r.Post("/cursor/prev", h.SelectPrev)

		r.Put("/draft/info", h.UpdateDraftInfo)
		r.Post("/draft", h.GenerateDraft)
		r.Post("/draft/copy", h.CopyDraft)
		r.Post("/draft/broadcast", h.BroadcastDraft)
		r.Post("/draft/dictation/{field}", h.Dictate)

		r.Post("/speech", h.Speak)
		r.Get("/speech", h.CurrentClip)
		r.Delete("/speech", h.StopSpeech)
	})
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(id uuid.UUID) (SessionView, error)) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := fn(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeMessage(w, status, err.Error())
		return
	}
	// Upstream causes can carry credentials in request URLs; keep them in the log.
	h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	switch {
	case errors.Is(err, ErrBroadcastFailed):
		writeMessage(w, status, ErrBroadcastFailed.Error())
	case errors.Is(err, ErrDictationDisabled):
		writeMessage(w, status, ErrDictationDisabled.Error())
	default:
		writeMessage(w, status, http.StatusText(status))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, drafting.ErrPreconditionNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, drafting.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, ErrBroadcastFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrDictationDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, checklist.ErrStepOutOfRange),
		errors.Is(err, checklist.ErrItemOutOfRange),
		errors.Is(err, checklist.ErrUnknownBranch),
		errors.Is(err, drafting.ErrUnknownField),
		errors.Is(err, drafting.ErrInvalidGender),
		errors.Is(err, protocol.ErrUnknownMode),
		errors.Is(err, protocol.ErrUnknownUnit),
		errors.Is(err, ErrInvalidView),
		errors.Is(err, ErrUnknownPhrase),
		errors.Is(err, ErrNothingToSpeak):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid response id")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

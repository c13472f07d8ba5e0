package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

const (
	maxEntriesPerRequest = 100
	maxRequestBytes      = 64 << 10
)

// DefaultShareSchemes are the reference schemes accepted over HTTP. Local
// files and index references stay reachable only for in-process callers.
var DefaultShareSchemes = []string{"http", "https"}

// Handler exposes one image saver session over HTTP.
type Handler struct {
	service mediasaver.Service
	notices *mediasaver.NoticeFeed
	schemes map[string]bool
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithShareSchemes replaces the reference schemes a share may use.
func WithShareSchemes(schemes ...string) HandlerOption {
	return func(h *Handler) {
		h.schemes = make(map[string]bool, len(schemes))
		for _, scheme := range schemes {
			h.schemes[strings.ToLower(scheme)] = true
		}
	}
}

// NewHandler creates a handler. notices may be nil, in which case the notices
// endpoint always returns an empty list.
func NewHandler(service mediasaver.Service, notices *mediasaver.NoticeFeed, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		notices: notices,
	}
	WithShareSchemes(DefaultShareSchemes...)(h)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the session endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		RequestIDMiddleware,
		RecoveryMiddleware,
		LoggingMiddleware(slog.Default()),
		RequestSizeLimitMiddleware(maxRequestBytes),
	)

	r.Post("/share", h.ReceiveShare)
	r.Post("/save", h.Save)
	r.Post("/permissions", h.PermissionResult)
	r.Get("/state", h.GetState)

	r.Get("/input/preview", h.PreviewInput)

	r.Get("/output/open", h.OpenOutput)
	r.Get("/output/preview", h.PreviewOutput)
	r.Delete("/output", h.DeleteOutput)

	r.Get("/entries", h.ListEntries)
	r.Get("/entries/{id}", h.GetEntry)
	r.Get("/entries/{id}/content", h.GetEntryContent)

	r.Get("/notices", h.ListNotices)
	return r
}

// ShareRequest is the request body for an inbound share
type ShareRequest struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Stream string `json:"stream"`
}

// PermissionRequest is the request body carrying the user's permission answer
type PermissionRequest struct {
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
}

// StateResponse is the response body for the session state
type StateResponse struct {
	Strategy string                 `json:"strategy"`
	Input    string                 `json:"input,omitempty"`
	Output   *mediasaver.MediaEntry `json:"output,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReceiveShare accepts a share intent
func (h *Handler) ReceiveShare(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Action == "" {
		req.Action = mediasaver.ActionSend
	}
	if scheme := mediasaver.ImageRef(req.Stream).Scheme(); req.Stream != "" && !h.schemes[scheme] {
		h.handleError(w, r, fmt.Errorf("%w: %q", mediasaver.ErrUnsupportedScheme, scheme))
		return
	}

	err := h.service.ReceiveShare(r.Context(), mediasaver.ShareIntent{
		Action: req.Action,
		Type:   req.Type,
		Stream: mediasaver.ImageRef(req.Stream),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, h.state())
}

// Save copies the current input into the media index
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Save(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	slog.Info("Image saved", "entry_id", entry.ID, "display_name", entry.DisplayName)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entry)
}

// PermissionResult delivers a permission answer
func (h *Handler) PermissionResult(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Permission == "" {
		req.Permission = mediasaver.PermissionWriteExternalStorage
	}

	if err := h.service.PermissionResult(r.Context(), req.Permission, req.Granted); err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, h.state())
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.state())
}

// PreviewInput renders the shared image
func (h *Handler) PreviewInput(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.PreviewInput(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writePreview(w, preview)
}

// OpenOutput redirects to a URL a viewer can open. Backends without URLs and
// legacy files fall back to streaming the entry content.
func (h *Handler) OpenOutput(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.OpenOutput(r.Context())
	if errors.Is(err, mediasaver.ErrNoViewURL) || (err == nil && strings.HasPrefix(url, "file://")) {
		output := h.service.State().Output
		if output == nil {
			h.handleError(w, r, mediasaver.ErrNoOutput)
			return
		}
		http.Redirect(w, r, "../entries/"+output.ID.String()+"/content", http.StatusFound)
		return
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// PreviewOutput reloads the saved entry through the media index and renders it
func (h *Handler) PreviewOutput(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.LoadOutput(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writePreview(w, preview)
}

// DeleteOutput removes the saved entry
func (h *Handler) DeleteOutput(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOutput(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries lists entries of the media index
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := mediasaver.ListEntriesRequest{Status: query.Get("status")}

	var err error
	if req.Limit, err = intParam(query.Get("limit"), 0); err != nil || req.Limit < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid limit")
		return
	}
	if req.Limit == 0 || req.Limit > maxEntriesPerRequest {
		req.Limit = maxEntriesPerRequest
	}
	if req.Offset, err = intParam(query.Get("offset"), 0); err != nil || req.Offset < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid offset")
		return
	}

	entries, err := h.service.ListEntries(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*mediasaver.MediaEntry{}
	}
	render.JSON(w, r, entries)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

// GetEntryContent streams the bytes behind an entry
func (h *Handler) GetEntryContent(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, rc, err := h.service.OpenEntry(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer rc.Close()

	if entry.MimeType != "" && entry.MimeType != mediasaver.DefaultMimeType {
		w.Header().Set("Content-Type", entry.MimeType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("Failed to stream entry content", "entry_id", id, "error", err)
	}
}

// ListNotices returns the recent user-visible notices, oldest first
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices := []mediasaver.Notice{}
	if h.notices != nil {
		notices = h.notices.Recent()
	}
	render.JSON(w, r, notices)
}

func (h *Handler) state() StateResponse {
	state := h.service.State()
	return StateResponse{
		Strategy: string(h.service.Strategy()),
		Input:    string(state.Input),
		Output:   state.Output,
	}
}

// handleError maps service errors to status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, r, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, mediasaver.ErrNoInput):
		return http.StatusConflict, "no_input"
	case errors.Is(err, mediasaver.ErrNoOutput):
		return http.StatusConflict, "no_output"
	case errors.Is(err, mediasaver.ErrSaveInProgress):
		return http.StatusConflict, "save_in_progress"
	case errors.Is(err, mediasaver.ErrNoPendingPermission):
		return http.StatusConflict, "no_pending_permission"
	case errors.Is(err, mediasaver.ErrPermissionRequired):
		return http.StatusForbidden, "permission_required"
	case errors.Is(err, mediasaver.ErrShareIgnored):
		return http.StatusUnprocessableEntity, "share_ignored"
	case errors.Is(err, mediasaver.ErrUnsupportedScheme), errors.Is(err, mediasaver.ErrNoDisplayName):
		return http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, mediasaver.ErrEntryNotFound), errors.Is(err, mediasaver.ErrObjectNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, mediasaver.ErrCopyFailed):
		return http.StatusBadGateway, "copy_failed"
	case errors.Is(err, mediasaver.ErrNoDestination):
		return http.StatusServiceUnavailable, "no_destination"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func writePreview(w http.ResponseWriter, preview *mediasaver.Preview) {
	w.Header().Set("Content-Type", preview.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(preview.Data)
}

func entryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid entry ID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/services"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

const maxBodyBytes = 1 << 20

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	service ports.LinkService
	pinger  Pinger
	baseURL string
	log     zerolog.Logger
}

func NewHTTPHandler(service ports.LinkService, pinger Pinger, baseURL string, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, pinger: pinger, baseURL: baseURL, log: log}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	LongURL  string `json:"long_url"`
	ShortURL string `json:"short_url,omitempty"`
}

// UpdateLinkRequest payload. Empty fields keep their value.
type UpdateLinkRequest struct {
	LongURL  string `json:"long_url,omitempty"`
	ShortURL string `json:"short_url,omitempty"`
}

// LinkResponse adds the absolute short link to a stored link.
type LinkResponse struct {
	domain.Link
	ShortLink string `json:"short_link"`
}

type ListResponse struct {
	Data  []LinkResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func (h *HTTPHandler) toResponse(link domain.Link) LinkResponse {
	return LinkResponse{Link: link, ShortLink: h.baseURL + "/" + link.ShortURL}
}

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("health check failed")
		writeJSON(w, h.log, http.StatusServiceUnavailable, map[string]string{"message": "storage unavailable"})
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"message": "ok"})
}

// Create Link. Responds 200 instead of 201 when an existing link was reused.
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, created, err := h.service.Shorten(r.Context(), PrincipalFrom(r.Context()), req.LongURL, req.ShortURL)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, h.log, status, h.toResponse(*link))
}

// Redirect to the long url
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "short_url")

	longURL, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	http.Redirect(w, r, longURL, http.StatusFound)
}

// NotFound is the landing page for unknown short urls.
func (h *HTTPHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, h.log, domain.ErrNotFound)
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	link, err := h.service.GetLink(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, h.toResponse(*link))
}

// List Links
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	search := r.URL.Query().Get("search")

	links, count, err := h.service.ListLinks(r.Context(), PrincipalFrom(r.Context()), page, limit, search)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	page, limit = services.PageBounds(page, limit)
	resp := ListResponse{Data: make([]LinkResponse, 0, len(links)), Total: count, Page: page, Limit: limit}
	for _, l := range links {
		resp.Data = append(resp.Data, h.toResponse(l))
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.service.UpdateLink(r.Context(), PrincipalFrom(r.Context()), id, req.LongURL, req.ShortURL)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, h.toResponse(*link))
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteLink(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate runs a validation pass now.
func (h *HTTPHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	link, err := h.service.Revalidate(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, h.toResponse(*link))
}

// Statistics for staff
func (h *HTTPHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	stats, err := h.service.Statistics(r.Context(), PrincipalFrom(r.Context()), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, stats)
}

func (h *HTTPHandler) linkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Error: "invalid link id"})
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

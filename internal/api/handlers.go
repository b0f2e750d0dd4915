// Package api exposes the leaderboard, results, roster and activity
// configuration over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
)

// LeaderboardRefresher recomputes the leaderboard on demand.
type LeaderboardRefresher interface {
	RefreshOrLast(ctx context.Context) (*domain.RefreshResult, error)
}

// Handler handles HTTP interactions.
type Handler struct {
	service   *domain.Service
	refresher LeaderboardRefresher
	logger    *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(service *domain.Service, refresher LeaderboardRefresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, refresher: refresher, logger: logger}
}

// healthz returns an OK response for readiness probes.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storedResponse(stored))
}

func (h *Handler) refreshLeaderboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.RefreshOrLast(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse(result.Leaderboard, result.UpdatedAt, result.Stale))
}

func (h *Handler) getActivityLeaderboard(w http.ResponseWriter, r *http.Request) {
	activity, ok := pathParam(w, r, "activity")
	if !ok {
		return
	}

	query := r.URL.Query()
	var category leaderboard.AgeCategory
	if raw := query.Get("category"); raw != "" {
		parsed, valid := leaderboard.ParseCategory(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown category "+raw)
			return
		}
		category = parsed
	}
	gender := leaderboard.Gender(query.Get("gender"))
	if gender != "" && !gender.Ranked() {
		writeError(w, http.StatusBadRequest, "invalid_request", "gender must be Male or Female")
		return
	}

	cells, updatedAt, err := h.service.ActivityLeaderboard(r.Context(), activity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if category != "" {
		cells = map[leaderboard.AgeCategory]leaderboard.Cell{category: cells[category]}
	}

	resp := ActivityLeaderboardResponse{
		Activity:  activity,
		Unit:      leaderboard.UnitOf(activity),
		UpdatedAt: updatedAt,
	}
	if gender == "" {
		resp.Categories = cellViews(activity, cells)
	} else {
		resp.Gender = gender
		resp.Entries = make(map[leaderboard.AgeCategory][]EntryView, len(cells))
		for c, cell := range cells {
			resp.Entries[c] = entryViews(activity, cell.ForGender(gender))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	filter := domain.ResultFilter{
		UserName: r.URL.Query().Get("user"),
		Activity: r.URL.Query().Get("activity"),
	}
	results, err := h.service.ListResults(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": results})
}

func (h *Handler) recordResult(w http.ResponseWriter, r *http.Request) {
	var req RecordResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "value is required")
		return
	}

	input := domain.RecordResultInput{UserName: req.UserName, Activity: req.Activity, Value: *req.Value}
	if req.Date != nil {
		input.Date = *req.Date
	}
	result, err := h.service.RecordResult(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) updateResult(w http.ResponseWriter, r *http.Request) {
	var req UpdateResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "value is required")
		return
	}
	result, err := h.service.UpdateResultValue(r.Context(), chi.URLParam(r, "id"), *req.Value)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) deleteResult(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) athleteRecords(w http.ResponseWriter, r *http.Request) {
	name, ok := pathParam(w, r, "name")
	if !ok {
		return
	}
	records, err := h.service.AthleteRecords(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := RecordsResponse{Athlete: strings.TrimSpace(name), Records: make(map[string]RecordView, len(records))}
	for activity, result := range records {
		resp.Records[activity] = RecordView{Result: result, Display: leaderboard.FormatValue(activity, result.Value)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.service.RegisterUser(r.Context(), domain.RegisterUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Birthdate: req.Birthdate,
		Email:     req.Email,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deletedResults": removed})
}

func (h *Handler) getActivities(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ActivityConfig(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) putActivities(w http.ResponseWriter, r *http.Request) {
	var req leaderboard.ActivityConfig
	if !decodeBody(w, r, &req) {
		return
	}
	cfg, err := h.service.SaveActivityConfig(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) renameActivity(w http.ResponseWriter, r *http.Request) {
	var req RenameActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	renamed, err := h.service.RenameActivity(r.Context(), req.From, req.To)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"renamedResults": renamed})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, "not_found", "result not found")
	case errors.Is(err, domain.ErrLeaderboardNotFound):
		writeError(w, http.StatusNotFound, "not_found", "leaderboard not computed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// pathParam returns the URL parameter, writing a 400 when it is blank. chi
// matches against RawPath when the request carries one, so only then is the
// value still escaped.
func pathParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	value := chi.URLParam(r, key)
	var err error
	if r.URL.RawPath != "" {
		value, err = url.PathUnescape(value)
	}
	if err != nil || strings.TrimSpace(value) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or malformed "+key)
		return "", false
	}
	return value, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"type": code, "detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

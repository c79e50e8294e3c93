package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/database"
	"github.com/beatbridge/beatbridge/errors"
	"github.com/beatbridge/beatbridge/models"
	"github.com/beatbridge/beatbridge/recommend"
	"github.com/beatbridge/beatbridge/tags"
)

const (
	MaxUserIDLength = 100
	MaxInputLength  = 1000
)

// ASCII control character constants
const (
	ASCIIControlCharMin = 32
	ASCIIControlCharMax = 127
)

type Handler struct {
	logger *logrus.Logger
	engine *recommend.Service
	db     *database.DB
}

func New(logger *logrus.Logger, engine *recommend.Service, db *database.DB) *Handler {
	return &Handler{
		logger: logger,
		engine: engine,
		db:     db,
	}
}

// SanitizeForLogging removes control characters and limits length to prevent log injection
func SanitizeForLogging(input string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < ASCIIControlCharMin || r == ASCIIControlCharMax {
			return -1
		}
		return r
	}, input)

	if len(sanitized) > MaxInputLength {
		sanitized = sanitized[:MaxInputLength] + "..."
	}

	return sanitized
}

// ValidateUserID validates user ID presence and length
func ValidateUserID(userID string) error {
	if len(userID) == 0 {
		return errors.ErrMissingParameter.WithContext("parameter", "user")
	}
	if len(userID) > MaxUserIDLength {
		return errors.ErrInvalidInput.WithContext("field", "user").
			WithContext("length", len(userID)).
			WithContext("max_length", MaxUserIDLength)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// userFromRequest extracts and validates the user query parameter.
// Authentication is handled upstream; this service trusts the identifier.
func (h *Handler) userFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user")
	if err := ValidateUserID(userID); err != nil {
		h.logger.WithError(err).Warn("Request with missing or invalid user parameter")
		h.writeError(w, http.StatusBadRequest, "missing or invalid user parameter")
		return "", false
	}
	return userID, true
}

type tagSongRequest struct {
	User   string `json:"user"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Genre  string `json:"genre"`
	Mood   string `json:"mood"`
	Tempo  string `json:"tempo"`
}

// HandleTagSong records one song tag in the user's history.
func (h *Handler) HandleTagSong(w http.ResponseWriter, r *http.Request) {
	var req tagSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ValidateUserID(req.User); err != nil {
		h.writeError(w, http.StatusBadRequest, "missing or invalid user")
		return
	}
	if req.Artist == "" || req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "artist and title are required")
		return
	}
	if !tags.ValidGenre(req.Genre) {
		h.writeError(w, http.StatusBadRequest, "unknown genre: "+SanitizeForLogging(req.Genre))
		return
	}
	if !tags.ValidMood(req.Mood) {
		h.writeError(w, http.StatusBadRequest, "unknown mood: "+SanitizeForLogging(req.Mood))
		return
	}
	if !tags.ValidTempo(req.Tempo) {
		h.writeError(w, http.StatusBadRequest, "unknown tempo: "+SanitizeForLogging(req.Tempo))
		return
	}

	if err := h.db.EnsureUser(req.User); err != nil {
		h.logger.WithError(err).WithField("userID", SanitizeForLogging(req.User)).Error("Failed to ensure user")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tag := models.SongTag{
		UserID: req.User,
		Artist: req.Artist,
		Title:  req.Title,
		Genre:  req.Genre,
		Mood:   req.Mood,
		Tempo:  req.Tempo,
	}
	if err := h.db.CreateSongTag(tag); err != nil {
		h.logger.WithError(err).WithField("userID", SanitizeForLogging(req.User)).Error("Failed to store song tag")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"userID": SanitizeForLogging(req.User),
		"artist": SanitizeForLogging(req.Artist),
	}).Info("Stored song tag")

	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

type generateRequest struct {
	Preferences models.Preferences `json:"preferences"`
	Threshold   float64            `json:"threshold"`
}

// HandleGenerate runs the recommendation algorithm on demand for the
// requesting user.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFromRequest(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	rec, err := h.engine.RunForUser(userID, req.Preferences, req.Threshold)
	if err != nil {
		switch {
		case errors.IsCode(err, "RUN_IN_PROGRESS"):
			h.writeError(w, http.StatusConflict, "a recommendation run is already in progress, retry shortly")
		case errors.IsCode(err, "NO_CANDIDATE"):
			h.writeError(w, http.StatusNotFound, "no new artist to recommend")
		default:
			h.logger.WithError(err).WithField("userID", SanitizeForLogging(userID)).Error("Failed to generate recommendation")
			h.writeError(w, http.StatusInternalServerError, "failed to generate recommendation")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// HandleLatest returns the newest recommendation row for the user.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFromRequest(w, r)
	if !ok {
		return
	}

	rec, err := h.db.LatestRecommendation(userID)
	if err != nil {
		if errors.IsCode(err, "NO_RECOMMENDATION") {
			h.writeError(w, http.StatusNotFound, "no recommendation yet")
			return
		}
		h.logger.WithError(err).WithField("userID", SanitizeForLogging(userID)).Error("Failed to fetch latest recommendation")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// HandleHistory returns the user's recommendation log, newest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userFromRequest(w, r)
	if !ok {
		return
	}

	recs, err := h.db.RecommendationHistory(userID)
	if err != nil {
		h.logger.WithError(err).WithField("userID", SanitizeForLogging(userID)).Error("Failed to fetch recommendation history")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}

	h.writeJSON(w, http.StatusOK, recs)
}

type feedbackRequest struct {
	ID       int    `json:"id"`
	Feedback string `json:"feedback"`
}

// HandleFeedback stores user feedback on one recommendation.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID <= 0 {
		h.writeError(w, http.StatusBadRequest, "missing recommendation id")
		return
	}

	if err := h.db.SetRecommendationFeedback(req.ID, req.Feedback); err != nil {
		if errors.IsCode(err, "NO_RECOMMENDATION") {
			h.writeError(w, http.StatusNotFound, "recommendation not found")
			return
		}
		h.logger.WithError(err).WithField("id", req.ID).Error("Failed to store recommendation feedback")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHealth reports liveness including a database ping.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.logger.WithError(err).Error("Health check failed")
		h.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

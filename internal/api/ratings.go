package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"slices"

	"github.com/erazemk/locallend/internal/booking"
	"github.com/erazemk/locallend/internal/model"
	"github.com/erazemk/locallend/internal/store"
)

// RatingsHandler handles post-booking feedback.
type RatingsHandler struct {
	DB       *sql.DB
	Bookings *booking.Service
}

func respondRatings(w http.ResponseWriter, ratings []model.Rating, err error) {
	if err != nil {
		slog.Error("failed to list ratings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list ratings")
		return
	}
	out := make([]model.Rating, 0, len(ratings))
	for _, rt := range ratings {
		out = append(out, rt.Redacted())
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/ratings.
func (h *RatingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.RateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := caller(r)
	rating, err := h.Bookings.Rate(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, "submit rating", err)
		return
	}
	jsonResponse(w, http.StatusCreated, rating.Redacted())
}

// CanRate handles GET /api/ratings/can-rate/{bookingId}.
func (h *RatingsHandler) CanRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bookingId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	userID, _ := caller(r)
	res, err := h.Bookings.CanRate(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, "check rating", err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// ForUser handles GET /api/ratings/user/{id}?type=received|given.
func (h *RatingsHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var ratings []model.Rating
	var err error
	switch r.URL.Query().Get("type") {
	case "", "received":
		ratings, err = store.ListRatingsReceived(r.Context(), h.DB, id)
	case "given":
		ratings, err = store.ListRatingsGiven(r.Context(), h.DB, id)
		// The path already names the rater.
		ratings = slices.DeleteFunc(ratings, func(rt model.Rating) bool { return rt.Anonymous })
	default:
		jsonError(w, http.StatusBadRequest, "type must be received or given")
		return
	}
	respondRatings(w, ratings, err)
}

// ForItem handles GET /api/ratings/item/{id}.
func (h *RatingsHandler) ForItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	ratings, err := store.ListItemRatings(r.Context(), h.DB, id)
	respondRatings(w, ratings, err)
}

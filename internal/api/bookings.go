package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/locallend/internal/booking"
	"github.com/erazemk/locallend/internal/model"
)

// BookingsHandler exposes the booking lifecycle.
type BookingsHandler struct {
	Bookings *booking.Service
}

type confirmRequest struct {
	OwnerNotes string `json:"owner_notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type activateRequest struct {
	DepositPaid bool `json:"deposit_paid"`
}

// Create handles POST /api/bookings.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	userID, _ := caller(r)
	b, err := h.Bookings.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, "create booking", err)
		return
	}
	jsonResponse(w, http.StatusCreated, b)
}

// Get handles GET /api/bookings/{id}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	userID, admin := caller(r)
	b, err := h.Bookings.Get(r.Context(), userID, admin, id)
	if err != nil {
		writeServiceError(w, r, "get booking", err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// transition decodes an optional body into req, then runs apply on the path booking.
func (h *BookingsHandler) transition(w http.ResponseWriter, r *http.Request, action string, req any,
	apply func(userID, id int64) (*model.Booking, error),
) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	if req != nil {
		if err := decodeOptionalJSON(r, req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	userID, _ := caller(r)
	b, err := apply(userID, id)
	if err != nil {
		writeServiceError(w, r, action, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Confirm handles PATCH /api/bookings/{id}/confirm.
func (h *BookingsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	h.transition(w, r, "confirm booking", &req, func(userID, id int64) (*model.Booking, error) {
		return h.Bookings.Confirm(r.Context(), userID, id, req.OwnerNotes)
	})
}

// Reject handles PATCH /api/bookings/{id}/reject.
func (h *BookingsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	h.transition(w, r, "reject booking", &req, func(userID, id int64) (*model.Booking, error) {
		return h.Bookings.Reject(r.Context(), userID, id, req.Reason)
	})
}

// Activate handles PATCH /api/bookings/{id}/activate.
func (h *BookingsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	h.transition(w, r, "activate booking", &req, func(userID, id int64) (*model.Booking, error) {
		return h.Bookings.Activate(r.Context(), userID, id, req.DepositPaid)
	})
}

// Complete handles PATCH /api/bookings/{id}/complete.
func (h *BookingsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete booking", nil, func(userID, id int64) (*model.Booking, error) {
		return h.Bookings.Complete(r.Context(), userID, id)
	})
}

// Cancel handles PATCH /api/bookings/{id}/cancel.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	h.transition(w, r, "cancel booking", &req, func(userID, id int64) (*model.Booking, error) {
		return h.Bookings.Cancel(r.Context(), userID, id, req.Reason)
	})
}

// statusFilter parses the optional ?status= of booking listings.
func statusFilter(w http.ResponseWriter, r *http.Request) (model.BookingStatus, bool) {
	v := r.URL.Query().Get("status")
	if v == "" {
		return "", true
	}
	s, err := model.ParseBookingStatus(v)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return s, true
}

func respondBookings(w http.ResponseWriter, bookings []model.Booking, err error) {
	if err != nil {
		slog.Error("failed to list bookings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	jsonResponse(w, http.StatusOK, bookings)
}

// Mine handles GET /api/bookings/my-bookings.
func (h *BookingsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	userID, _ := caller(r)
	bookings, err := h.Bookings.ListForBorrower(r.Context(), userID, status)
	respondBookings(w, bookings, err)
}

// Owned handles GET /api/bookings/my-owned.
func (h *BookingsHandler) Owned(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	userID, _ := caller(r)
	bookings, err := h.Bookings.ListForOwner(r.Context(), userID, status)
	respondBookings(w, bookings, err)
}

// Overdue handles GET /api/bookings/overdue.
func (h *BookingsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Bookings.ListOverdue(r.Context())
	respondBookings(w, bookings, err)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/locallend/internal/booking"
	"github.com/erazemk/locallend/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func jsonMessage(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusOK, map[string]string{"message": message})
}

// decodeJSON decodes a single JSON object from the request body. Unknown
// fields are an error.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be omitted.
func decodeOptionalJSON(r *http.Request, target any) error {
	err := decodeJSON(r, target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// writeServiceError maps booking service and store errors to HTTP responses.
// Unknown errors are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var te *booking.TransitionError
	switch {
	case booking.IsValidation(err):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrItemNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, booking.ErrInsufficientTrust):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &te),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrItemUnavailable),
		errors.Is(err, booking.ErrItemHasBookings),
		errors.Is(err, booking.ErrNotRateable),
		errors.Is(err, booking.ErrAlreadyRated):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrStaleBooking):
		jsonError(w, http.StatusConflict, "booking was changed concurrently, retry")
	default:
		slog.Error("request failed", "action", action, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

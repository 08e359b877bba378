package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type RegisterAttendeeRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// handleRegisterAttendee registers a named attendee for the jam. Votes the
// same session cast before registering are claimed by the new attendee, so
// switching from anonymous to named costs nothing.
func handleRegisterAttendee(store Store, hub *Hub, cache *SnapshotCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		var req RegisterAttendeeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "sessionId is required")
			return
		}

		att, err := store.RegisterAttendee(r.Context(), jam.ID, req.Name, req.SessionID)
		if errors.Is(err, ErrDuplicateAttendee) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			logger.Error("registering attendee", "jam_id", jam.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventAttendeeRegistered, att)

		writeJSON(w, http.StatusCreated, att)
	}
}

func handleListAttendees(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		attendees, err := store.Attendees(r.Context(), jam.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, attendees)
	}
}

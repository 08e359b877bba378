package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type PerformRequest struct {
	SongID     string `json:"songId"`
	AttendeeID string `json:"attendeeId"`
	Instrument string `json:"instrument,omitempty"`
}

type PerformResponse struct {
	SongID     string      `json:"songId"`
	Performers []Performer `json:"performers"`
}

type performanceUpdate struct {
	SongID     string `json:"songId"`
	AttendeeID string `json:"attendeeId"`
	Registered bool   `json:"registered"`
	Instrument string `json:"instrument,omitempty"`
}

func handleRegisterPerformance(store Store, hub *Hub, cache *SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		var req PerformRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Instrument = strings.TrimSpace(req.Instrument)
		if req.SongID == "" || req.AttendeeID == "" {
			writeError(w, http.StatusBadRequest, "songId and attendeeId are required")
			return
		}

		_, err := store.RegisterPerformance(r.Context(), jam.ID, req.SongID, req.AttendeeID, req.Instrument)
		switch {
		case errors.Is(err, ErrUnknownSong), errors.Is(err, ErrUnknownAttendee):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, ErrDuplicateRegistration), errors.Is(err, ErrPerformanceLimit):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		performers, err := store.Performers(r.Context(), jam.ID, req.SongID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventPerformanceUpdate, performanceUpdate{
			SongID:     req.SongID,
			AttendeeID: req.AttendeeID,
			Registered: true,
			Instrument: req.Instrument,
		})

		writeJSON(w, http.StatusOK, PerformResponse{
			SongID:     req.SongID,
			Performers: performers,
		})
	}
}

func handleUnregisterPerformance(store Store, hub *Hub, cache *SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		var req PerformRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SongID == "" || req.AttendeeID == "" {
			writeError(w, http.StatusBadRequest, "songId and attendeeId are required")
			return
		}

		err := store.UnregisterPerformance(r.Context(), jam.ID, req.SongID, req.AttendeeID)
		if errors.Is(err, ErrNotRegistered) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		performers, err := store.Performers(r.Context(), jam.ID, req.SongID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventPerformanceUpdate, performanceUpdate{
			SongID:     req.SongID,
			AttendeeID: req.AttendeeID,
			Registered: false,
		})

		writeJSON(w, http.StatusOK, PerformResponse{
			SongID:     req.SongID,
			Performers: performers,
		})
	}
}

func handleSongPerformers(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)
		songID := chi.URLParam(r, "song")

		inJam, err := store.SongInJam(r.Context(), jam.ID, songID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !inJam {
			writeError(w, http.StatusNotFound, ErrUnknownSong.Error())
			return
		}

		performers, err := store.Performers(r.Context(), jam.ID, songID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, performers)
	}
}

// handleListRegistrations returns every performance registration in the
// jam, optionally filtered by ?attendeeId=.
func handleListRegistrations(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		regs, err := store.Registrations(r.Context(), jam.ID, r.URL.Query().Get("attendeeId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, regs)
	}
}

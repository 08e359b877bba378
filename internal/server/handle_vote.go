package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type VoteRequest struct {
	SongID     string `json:"songId"`
	AttendeeID string `json:"attendeeId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

type VoteResponse struct {
	SongID    string `json:"songId"`
	Voted     bool   `json:"voted"`
	VoteCount int    `json:"voteCount"`
}

// handleVote toggles the actor's vote on a song. The response is the
// authoritative state for the acting client; everyone else learns about the
// change from the vote_update broadcast and refetches.
func handleVote(store Store, hub *Hub, cache *SnapshotCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		var req VoteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SongID == "" {
			writeError(w, http.StatusBadRequest, "songId is required")
			return
		}

		actor, err := resolveActor(r.Context(), store, jam.ID, req.AttendeeID, req.SessionID)
		if errors.Is(err, errNoActor) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, ErrUnknownAttendee) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		inJam, err := store.SongInJam(r.Context(), jam.ID, req.SongID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !inJam {
			writeError(w, http.StatusNotFound, ErrUnknownSong.Error())
			return
		}

		voted, count, err := store.ToggleVote(r.Context(), jam.ID, req.SongID, actor)
		if err != nil {
			logger.Error("toggling vote", "jam_id", jam.ID, "song_id", req.SongID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventVoteUpdate, VoteResponse{
			SongID:    req.SongID,
			Voted:     voted,
			VoteCount: count,
		})

		writeJSON(w, http.StatusOK, VoteResponse{
			SongID:    req.SongID,
			Voted:     voted,
			VoteCount: count,
		})
	}
}

// handleVoteStatus reports whether the given actor has voted for a song,
// plus the current count, without mutating anything.
func handleVoteStatus(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)
		songID := chi.URLParam(r, "song")

		actor, err := resolveActor(r.Context(), store, jam.ID,
			r.URL.Query().Get("attendeeId"), r.URL.Query().Get("sessionId"))
		if errors.Is(err, errNoActor) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, ErrUnknownAttendee) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		inJam, err := store.SongInJam(r.Context(), jam.ID, songID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !inJam {
			writeError(w, http.StatusNotFound, ErrUnknownSong.Error())
			return
		}

		voted, count, err := store.VoteStatus(r.Context(), jam.ID, songID, actor)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, VoteResponse{
			SongID:    songID,
			Voted:     voted,
			VoteCount: count,
		})
	}
}

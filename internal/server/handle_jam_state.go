package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// JamSnapshot is the full refetch payload: the jam row plus its ranked
// queue and attendee roster. Clients request it whenever a broadcast tells
// them something changed.
type JamSnapshot struct {
	Jam       Jam            `json:"jam"`
	Songs     []JamSongState `json:"songs"`
	Attendees []Attendee     `json:"attendees"`
}

func buildSnapshot(ctx context.Context, store Store, jam Jam) (JamSnapshot, error) {
	songs, err := store.JamSongs(ctx, jam.ID)
	if err != nil {
		return JamSnapshot{}, err
	}
	attendees, err := store.Attendees(ctx, jam.ID)
	if err != nil {
		return JamSnapshot{}, err
	}
	return JamSnapshot{
		Jam:       jam,
		Songs:     rankSongs(songs),
		Attendees: attendees,
	}, nil
}

func serveSnapshot(w http.ResponseWriter, r *http.Request, store Store, cache *SnapshotCache, logger *slog.Logger, jam Jam) {
	if body, ok := cache.Get(r.Context(), jam.ID); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	snap, err := buildSnapshot(r.Context(), store, jam)
	if err != nil {
		logger.Error("building jam snapshot", "jam_id", jam.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	body, err := json.Marshal(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	cache.Set(r.Context(), jam.ID, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleJamSnapshot serves the ranked jam snapshot, preferring the cached
// encoding when redis has a fresh one.
func handleJamSnapshot(store Store, cache *SnapshotCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSnapshot(w, r, store, cache, logger, jamFrom(r))
	}
}

// handleJamBySlug serves the snapshot for a public jam URL like
// /api/jams/by-slug/{slug}, so share links resolve in one request.
func handleJamBySlug(store Store, cache *SnapshotCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam, err := store.JamBySlug(r.Context(), chi.URLParam(r, "slug"))
		if errors.Is(err, ErrUnknownJam) {
			writeError(w, http.StatusNotFound, "jam not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		serveSnapshot(w, r, store, cache, logger, jam)
	}
}

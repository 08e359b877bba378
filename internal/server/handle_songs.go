package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type AddSongRequest struct {
	// SongID links an existing catalog song. When empty, Title and Artist
	// identify or create one.
	SongID string `json:"songId,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

type songEvent struct {
	SongID string `json:"songId"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// handleAddSong suggests a song for the jam. The song catalog is shared
// across jams: an existing title/artist pair is reused, a new one is
// created, and either way the song is linked into this jam's queue.
func handleAddSong(store Store, hub *Hub, cache *SnapshotCache, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		var req AddSongRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Artist = strings.TrimSpace(req.Artist)

		var song Song
		switch {
		case req.SongID != "":
			var err error
			song, err = store.SongByID(r.Context(), req.SongID)
			if errors.Is(err, ErrUnknownSong) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		case req.Title != "" && req.Artist != "":
			var found bool
			var err error
			song, found, err = store.FindSong(r.Context(), req.Title, req.Artist)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !found {
				song, err = store.CreateSong(r.Context(), req.Title, req.Artist)
				if err != nil {
					logger.Error("creating song", "title", req.Title, "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
			}
		default:
			writeError(w, http.StatusBadRequest, "songId or title and artist are required")
			return
		}

		if err := store.AddSongToJam(r.Context(), jam.ID, song.ID); err != nil {
			if errors.Is(err, ErrDuplicateSong) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventSongAdded, songEvent{
			SongID: song.ID,
			Title:  song.Title,
			Artist: song.Artist,
		})

		writeJSON(w, http.StatusCreated, song)
	}
}

// handleMarkPlayed marks a queue entry as performed. Manager only.
func handleMarkPlayed(store Store, hub *Hub, cache *SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)
		songID := chi.URLParam(r, "song")

		err := store.MarkSongPlayed(r.Context(), jam.ID, songID)
		if errors.Is(err, ErrUnknownSong) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		cache.Invalidate(r.Context(), jam.ID)
		hub.Publish(jam.ID, EventSongPlayed, map[string]string{"songId": songID})

		w.WriteHeader(http.StatusNoContent)
	}
}

package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// slugRetries bounds the retry loop for slug races on UNIQUE(slug).
const slugRetries = 3

type CreateJamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	JamDate     string `json:"jamDate"`
}

// handleCreateJam creates a jam with a generated slug. Manager only.
func handleCreateJam(store Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateJamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.JamDate != "" {
			if _, err := time.Parse("2006-01-02", req.JamDate); err != nil {
				writeError(w, http.StatusBadRequest, "jamDate must be YYYY-MM-DD")
				return
			}
		}

		taken, err := store.JamSlugs(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// A concurrent create can land the same slug between our read and
		// the insert; the UNIQUE(slug) constraint catches it, so treat the
		// failed slug as taken and retry with the next suffix.
		base := makeSlug(req.Name, req.JamDate)
		slug := uniqueSlug(base, taken)
		for range slugRetries {
			jam, createErr := store.CreateJam(r.Context(), req.Name, req.Description, slug, req.JamDate)
			if isConstraintErr(createErr) {
				err = createErr
				taken = append(taken, slug)
				slug = uniqueSlug(base, taken)
				continue
			}
			if createErr != nil {
				logger.Error("creating jam", "name", req.Name, "error", createErr)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeJSON(w, http.StatusCreated, jam)
			return
		}

		logger.Error("creating jam", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func handleListJams(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jams, err := store.ListJams(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, jams)
	}
}

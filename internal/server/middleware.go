package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const ctxKeyJam ctxKey = iota

// jamMiddleware resolves the {jam} URL parameter to a jam row and stashes
// it in the request context. Unknown jams short-circuit with 404 so the
// handlers never see an invalid jam id.
func jamMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "jam")
			if id == "" {
				writeError(w, http.StatusNotFound, "jam not found")
				return
			}

			jam, err := store.JamByID(r.Context(), id)
			if errors.Is(err, ErrUnknownJam) {
				writeError(w, http.StatusNotFound, "jam not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyJam, jam)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func jamFrom(r *http.Request) Jam {
	return r.Context().Value(ctxKeyJam).(Jam)
}

// managerMiddleware gates jam-management endpoints behind the access code
// from config. An empty hash disables the gate.
func managerMiddleware(codeHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if codeHash != "" {
				code := r.Header.Get("X-Manager-Code")
				if code == "" {
					writeError(w, http.StatusForbidden, "manager access code required")
					return
				}
				if err := bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(code)); err != nil {
					writeError(w, http.StatusForbidden, "invalid manager access code")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

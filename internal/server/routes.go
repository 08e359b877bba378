package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, hub *Hub, cache *SnapshotCache, db *sql.DB, rdb *redis.Client, opts Options) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Jamanager API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))

	// Live event stream, one socket per open jam page.
	r.Route("/ws/{jam}", func(r chi.Router) {
		r.Use(jamMiddleware(store))
		r.Get("/", handleWS(hub, logger))
	})

	r.Route("/api/jams", func(r chi.Router) {
		r.Get("/", handleListJams(store))
		r.With(managerMiddleware(opts.ManagerCodeHash)).Post("/", handleCreateJam(store, logger))
		r.Get("/by-slug/{slug}", handleJamBySlug(store, cache, logger))

		// Per-jam routes. {jam} resolved by jamMiddleware.
		r.Route("/{jam}", func(r chi.Router) {
			r.Use(jamMiddleware(store))

			r.Get("/", handleJamSnapshot(store, cache, logger))

			r.Post("/songs", handleAddSong(store, hub, cache, logger))
			r.Get("/songs/{song}/performers", handleSongPerformers(store))
			r.Get("/songs/{song}/vote-status", handleVoteStatus(store))
			r.With(managerMiddleware(opts.ManagerCodeHash)).
				Post("/songs/{song}/play", handleMarkPlayed(store, hub, cache))

			r.Post("/vote", handleVote(store, hub, cache, logger))

			r.Post("/attendees", handleRegisterAttendee(store, hub, cache, logger))
			r.Get("/attendees", handleListAttendees(store))

			r.Post("/perform", handleRegisterPerformance(store, hub, cache))
			r.Delete("/perform", handleUnregisterPerformance(store, hub, cache))
			r.Get("/performers", handleListRegistrations(store))
		})
	})

	if opts.SPADir != "" {
		if info, err := os.Stat(opts.SPADir); err == nil && info.IsDir() {
			logger.Info("serving web client", "dir", opts.SPADir)
			r.NotFound(handleSPA(opts.SPADir))
		}
	}
}

package server

import (
	"context"
	"errors"
	"log/slog"
)

// SeedDemo creates a demo jam with a handful of songs if no jams exist.
// Idempotent: does nothing when the database already has jams.
func SeedDemo(ctx context.Context, logger *slog.Logger, store Store) error {
	existing, err := store.ListJams(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	jam, err := store.CreateJam(ctx, "Demo Jam", "A demo session to click around in.", "demo-jam", "")
	if err != nil {
		return err
	}

	demoSongs := []struct{ title, artist string }{
		{"Sweet Home Chicago", "Robert Johnson"},
		{"The Thrill Is Gone", "B.B. King"},
		{"Crossroads", "Cream"},
	}
	for _, s := range demoSongs {
		song, err := store.CreateSong(ctx, s.title, s.artist)
		if err != nil {
			return err
		}
		if err := store.AddSongToJam(ctx, jam.ID, song.ID); err != nil && !errors.Is(err, ErrDuplicateSong) {
			return err
		}
	}

	logger.Info("demo jam created and seeded", "jam_id", jam.ID, "slug", jam.Slug)
	return nil
}

package migrations_test

import (
	"context"
	"testing"

	"github.com/openjam/jamanager/internal/database"
	"github.com/openjam/jamanager/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Verify all tables exist by querying sqlite_master.
	want := []string{"songs", "jams", "jam_songs", "attendees", "votes", "performance_registrations"}

	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(db); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}

func TestVoteActorUniqueness(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := db.Exec(q, args...); err != nil {
			t.Fatalf("exec %s: %v", q, err)
		}
	}

	mustExec(`INSERT INTO jams (id, slug, name, jam_date) VALUES ('j1', 'test-jam', 'Test Jam', '2026-08-23')`)
	mustExec(`INSERT INTO songs (id, title, artist) VALUES ('s1', 'Alpha', 'Band')`)
	mustExec(`INSERT INTO votes (id, jam_id, song_id, session_id) VALUES ('v1', 'j1', 's1', 'tok-1')`)

	// Second vote for the same (jam, song, session) must hit the unique index.
	_, err = db.Exec(`INSERT INTO votes (id, jam_id, song_id, session_id) VALUES ('v2', 'j1', 's1', 'tok-1')`)
	if err == nil {
		t.Fatal("expected unique constraint violation for duplicate session vote")
	}

	// A different session may still vote for the same song.
	mustExec(`INSERT INTO votes (id, jam_id, song_id, session_id) VALUES ('v3', 'j1', 's1', 'tok-2')`)
}

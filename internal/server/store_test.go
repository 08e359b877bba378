package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/openjam/jamanager/internal/database"
	"github.com/openjam/jamanager/internal/migrations"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Every pooled connection to :memory: is a separate database; pin the
	// pool to one connection so all queries see the same data.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return NewSQLiteStore(db, 3)
}

func seedJam(t *testing.T, store *SQLiteStore) (Jam, Song) {
	t.Helper()
	ctx := context.Background()

	jam, err := store.CreateJam(ctx, "Friday Blues", "", "friday-blues", "2026-08-28")
	if err != nil {
		t.Fatalf("create jam: %v", err)
	}
	song, err := store.CreateSong(ctx, "Sweet Home Chicago", "Robert Johnson")
	if err != nil {
		t.Fatalf("create song: %v", err)
	}
	if err := store.AddSongToJam(ctx, jam.ID, song.ID); err != nil {
		t.Fatalf("add song to jam: %v", err)
	}
	return jam, song
}

func TestToggleVoteIdempotentPair(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()
	actor := Actor{SessionID: "sess-1"}

	voted, count, err := store.ToggleVote(ctx, jam.ID, song.ID, actor)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !voted || count != 1 {
		t.Errorf("first toggle: voted=%v count=%d, want true 1", voted, count)
	}

	voted, count, err = store.ToggleVote(ctx, jam.ID, song.ID, actor)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if voted || count != 0 {
		t.Errorf("second toggle: voted=%v count=%d, want false 0", voted, count)
	}
}

func TestToggleVoteDistinctActors(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		actor := Actor{SessionID: fmt.Sprintf("sess-%d", i)}
		_, count, err := store.ToggleVote(ctx, jam.ID, song.ID, actor)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if count != i+1 {
			t.Errorf("toggle %d: count = %d, want %d", i, count, i+1)
		}
	}
}

func TestToggleVoteConcurrentSameActor(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()
	actor := Actor{SessionID: "sess-race"}

	// An even number of concurrent toggles can interleave any way it likes,
	// but the vote count must stay 0 or 1 and never go negative or double.
	g := new(errgroup.Group)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, _, err := store.ToggleVote(ctx, jam.ID, song.ID, actor)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent toggles: %v", err)
	}

	_, count, err := store.VoteStatus(ctx, jam.ID, song.ID, actor)
	if err != nil {
		t.Fatalf("vote status: %v", err)
	}
	if count != 0 && count != 1 {
		t.Errorf("count after 8 concurrent toggles = %d, want 0 or 1", count)
	}
}

func TestRegisterAttendeeClaimsSessionVotes(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	if _, _, err := store.ToggleVote(ctx, jam.ID, song.ID, Actor{SessionID: "sess-anon"}); err != nil {
		t.Fatalf("anonymous vote: %v", err)
	}

	att, err := store.RegisterAttendee(ctx, jam.ID, "Alice", "sess-anon")
	if err != nil {
		t.Fatalf("register attendee: %v", err)
	}

	// The vote now belongs to the attendee: toggling as the attendee
	// removes it.
	voted, count, err := store.ToggleVote(ctx, jam.ID, song.ID, Actor{AttendeeID: att.ID})
	if err != nil {
		t.Fatalf("toggle as attendee: %v", err)
	}
	if voted || count != 0 {
		t.Errorf("toggle as attendee: voted=%v count=%d, want false 0 (claimed vote removed)", voted, count)
	}
}

func TestRegisterAttendeeClaimDropsDuplicates(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	// Attendee registered under one session votes, then the same person
	// votes anonymously from another tab before that tab registers too.
	att, err := store.RegisterAttendee(ctx, jam.ID, "Bob", "sess-tab1")
	if err != nil {
		t.Fatalf("register attendee: %v", err)
	}
	if _, _, err := store.ToggleVote(ctx, jam.ID, song.ID, Actor{AttendeeID: att.ID}); err != nil {
		t.Fatalf("attendee vote: %v", err)
	}
	if _, _, err := store.ToggleVote(ctx, jam.ID, song.ID, Actor{SessionID: "sess-tab2"}); err != nil {
		t.Fatalf("anonymous vote: %v", err)
	}

	if _, err := store.RegisterAttendee(ctx, jam.ID, "Bob", "sess-tab2"); err != nil {
		t.Fatalf("re-register under new session: %v", err)
	}

	_, count, err := store.VoteStatus(ctx, jam.ID, song.ID, Actor{AttendeeID: att.ID})
	if err != nil {
		t.Fatalf("vote status: %v", err)
	}
	if count != 1 {
		t.Errorf("count after claim = %d, want 1 (duplicate dropped)", count)
	}
}

func TestRegisterAttendeeNameTaken(t *testing.T) {
	store := setupStore(t)
	jam, _ := seedJam(t, store)
	ctx := context.Background()

	if _, err := store.RegisterAttendee(ctx, jam.ID, "Carol", "sess-a"); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	// Same name from a session already bound to another attendee record.
	if _, err := store.RegisterAttendee(ctx, jam.ID, "Dan", "sess-b"); err != nil {
		t.Fatalf("second registration: %v", err)
	}
	_, err := store.RegisterAttendee(ctx, jam.ID, "Carol", "sess-b")
	if !errors.Is(err, ErrDuplicateAttendee) {
		t.Errorf("expected ErrDuplicateAttendee, got %v", err)
	}
}

func TestPerformanceLimit(t *testing.T) {
	store := setupStore(t)
	jam, _ := seedJam(t, store)
	ctx := context.Background()

	att, err := store.RegisterAttendee(ctx, jam.ID, "Alice", "sess-alice")
	if err != nil {
		t.Fatalf("register attendee: %v", err)
	}

	songIDs := make([]string, 4)
	for i := range songIDs {
		song, err := store.CreateSong(ctx, fmt.Sprintf("Song %d", i), "Artist")
		if err != nil {
			t.Fatalf("create song %d: %v", i, err)
		}
		if err := store.AddSongToJam(ctx, jam.ID, song.ID); err != nil {
			t.Fatalf("add song %d: %v", i, err)
		}
		songIDs[i] = song.ID
	}

	for i := 0; i < 3; i++ {
		if _, err := store.RegisterPerformance(ctx, jam.ID, songIDs[i], att.ID, "guitar"); err != nil {
			t.Fatalf("registration %d: %v", i, err)
		}
	}

	_, err = store.RegisterPerformance(ctx, jam.ID, songIDs[3], att.ID, "guitar")
	if !errors.Is(err, ErrPerformanceLimit) {
		t.Fatalf("expected ErrPerformanceLimit, got %v", err)
	}

	// The failed attempt must not disturb the held registrations.
	regs, err := store.Registrations(ctx, jam.ID, att.ID)
	if err != nil {
		t.Fatalf("registrations: %v", err)
	}
	if len(regs) != 3 {
		t.Errorf("held registrations = %d, want 3", len(regs))
	}

	// Freeing a slot makes the registration succeed.
	if err := store.UnregisterPerformance(ctx, jam.ID, songIDs[0], att.ID); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, err := store.RegisterPerformance(ctx, jam.ID, songIDs[3], att.ID, "guitar"); err != nil {
		t.Fatalf("registration after freeing a slot: %v", err)
	}
}

func TestRegisterPerformanceDuplicate(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	att, err := store.RegisterAttendee(ctx, jam.ID, "Alice", "sess-alice")
	if err != nil {
		t.Fatalf("register attendee: %v", err)
	}

	if _, err := store.RegisterPerformance(ctx, jam.ID, song.ID, att.ID, "guitar"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err = store.RegisterPerformance(ctx, jam.ID, song.ID, att.ID, "bass")
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("expected ErrDuplicateRegistration, got %v", err)
	}
}

func TestUnregisterPerformanceNotRegistered(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	att, err := store.RegisterAttendee(ctx, jam.ID, "Alice", "sess-alice")
	if err != nil {
		t.Fatalf("register attendee: %v", err)
	}

	err = store.UnregisterPerformance(ctx, jam.ID, song.ID, att.ID)
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestJamSongsDerivedCounts(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		actor := Actor{SessionID: fmt.Sprintf("sess-%d", i)}
		if _, _, err := store.ToggleVote(ctx, jam.ID, song.ID, actor); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
	}

	songs, err := store.JamSongs(ctx, jam.ID)
	if err != nil {
		t.Fatalf("jam songs: %v", err)
	}
	if len(songs) != 1 {
		t.Fatalf("got %d songs, want 1", len(songs))
	}
	if songs[0].VoteCount != 3 {
		t.Errorf("vote count = %d, want 3", songs[0].VoteCount)
	}
}

func TestMarkSongPlayed(t *testing.T) {
	store := setupStore(t)
	jam, song := seedJam(t, store)
	ctx := context.Background()

	if err := store.MarkSongPlayed(ctx, jam.ID, song.ID); err != nil {
		t.Fatalf("mark played: %v", err)
	}

	songs, err := store.JamSongs(ctx, jam.ID)
	if err != nil {
		t.Fatalf("jam songs: %v", err)
	}
	if !songs[0].Played || songs[0].PlayedAt == nil {
		t.Errorf("song not marked played: %+v", songs[0])
	}

	got, err := store.JamByID(ctx, jam.ID)
	if err != nil {
		t.Fatalf("jam by id: %v", err)
	}
	if got.Status != "playing" {
		t.Errorf("jam status = %q, want %q", got.Status, "playing")
	}
	if got.CurrentSongID == nil || *got.CurrentSongID != song.ID {
		t.Errorf("current song = %v, want %q", got.CurrentSongID, song.ID)
	}

	if err := store.MarkSongPlayed(ctx, jam.ID, "missing"); !errors.Is(err, ErrUnknownSong) {
		t.Errorf("expected ErrUnknownSong for unknown song, got %v", err)
	}
}

func TestFindSongCaseInsensitive(t *testing.T) {
	store := setupStore(t)
	_, song := seedJam(t, store)
	ctx := context.Background()

	got, found, err := store.FindSong(ctx, "sweet home chicago", "ROBERT JOHNSON")
	if err != nil {
		t.Fatalf("find song: %v", err)
	}
	if !found || got.ID != song.ID {
		t.Errorf("found=%v id=%q, want existing song %q", found, got.ID, song.ID)
	}
}

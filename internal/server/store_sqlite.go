package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// voteRetries bounds the retry loop for toggle races on the vote unique
// index. Unrelated songs and jams never contend.
const voteRetries = 3

type SQLiteStore struct {
	db *sql.DB

	// perfLimit is the max concurrent performance registrations per
	// attendee per jam.
	perfLimit int
}

func NewSQLiteStore(db *sql.DB, perfLimit int) *SQLiteStore {
	return &SQLiteStore{db: db, perfLimit: perfLimit}
}

func isConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateJam(ctx context.Context, name, description, slug, jamDate string) (Jam, error) {
	jam := Jam{
		Slug:        slug,
		Name:        name,
		Description: description,
		Status:      "waiting",
		JamDate:     jamDate,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO jams (id, slug, name, description, jam_date)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`, slug, name, description, jamDate).Scan(&jam.ID, &jam.CreatedAt, &jam.UpdatedAt)
	return jam, err
}

func (s *SQLiteStore) ListJams(ctx context.Context) ([]JamSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.id, j.slug, j.name, j.status, j.jam_date,
			(SELECT COUNT(*) FROM jam_songs js WHERE js.jam_id = j.id),
			j.created_at
		FROM jams j
		ORDER BY j.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jams := []JamSummary{}
	for rows.Next() {
		var j JamSummary
		if err := rows.Scan(&j.ID, &j.Slug, &j.Name, &j.Status, &j.JamDate, &j.SongCount, &j.CreatedAt); err != nil {
			return nil, err
		}
		jams = append(jams, j)
	}
	return jams, rows.Err()
}

func (s *SQLiteStore) JamByID(ctx context.Context, id string) (Jam, error) {
	return s.jamWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) JamBySlug(ctx context.Context, slug string) (Jam, error) {
	return s.jamWhere(ctx, "slug = ?", slug)
}

func (s *SQLiteStore) jamWhere(ctx context.Context, cond, arg string) (Jam, error) {
	var j Jam
	var currentSongID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, status, jam_date, current_song_id, created_at, updated_at
		FROM jams WHERE `+cond,
		arg).Scan(&j.ID, &j.Slug, &j.Name, &j.Description, &j.Status, &j.JamDate, &currentSongID, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return j, ErrUnknownJam
	}
	if currentSongID.Valid {
		j.CurrentSongID = &currentSongID.String
	}
	return j, err
}

func (s *SQLiteStore) JamSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM jams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func (s *SQLiteStore) CreateSong(ctx context.Context, title, artist string) (Song, error) {
	song := Song{Title: title, Artist: artist}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO songs (id, title, artist)
		VALUES (lower(hex(randomblob(16))), ?, ?)
		RETURNING id, created_at
	`, title, artist).Scan(&song.ID, &song.CreatedAt)
	return song, err
}

func (s *SQLiteStore) SongByID(ctx context.Context, id string) (Song, error) {
	song, found, err := s.songWhere(ctx, "id = ?", id)
	if err != nil {
		return Song{}, err
	}
	if !found {
		return Song{}, ErrUnknownSong
	}
	return song, nil
}

// FindSong matches title and artist case-insensitively so repeated
// suggestions reuse the existing row.
func (s *SQLiteStore) FindSong(ctx context.Context, title, artist string) (Song, bool, error) {
	return s.songWhere(ctx, "lower(title) = lower(?) AND lower(artist) = lower(?)", title, artist)
}

func (s *SQLiteStore) songWhere(ctx context.Context, cond string, args ...any) (Song, bool, error) {
	var song Song
	var chordSheetURL, lastPlayed sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, artist, chord_sheet_url, times_played, last_played, created_at
		FROM songs WHERE `+cond,
		args...).Scan(&song.ID, &song.Title, &song.Artist, &chordSheetURL, &song.TimesPlayed, &lastPlayed, &song.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Song{}, false, nil
	}
	if err != nil {
		return Song{}, false, err
	}
	if chordSheetURL.Valid {
		song.ChordSheetURL = &chordSheetURL.String
	}
	if lastPlayed.Valid {
		song.LastPlayed = &lastPlayed.String
	}
	return song, true, nil
}

func (s *SQLiteStore) AddSongToJam(ctx context.Context, jamID, songID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM songs WHERE id = ?`, songID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownSong
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jam_songs (id, jam_id, song_id)
		VALUES (lower(hex(randomblob(16))), ?, ?)
	`, jamID, songID)
	if isConstraintErr(err) {
		return ErrDuplicateSong
	}
	return err
}

func (s *SQLiteStore) SongInJam(ctx context.Context, jamID, songID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM jam_songs WHERE jam_id = ? AND song_id = ?
	`, jamID, songID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// JamSongs returns every queue entry for a jam with its derived vote count
// and performer list, in insertion order. Ranking is applied by the caller.
func (s *SQLiteStore) JamSongs(ctx context.Context, jamID string) ([]JamSongState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT js.song_id, s.title, s.artist, s.chord_sheet_url, js.played, js.played_at,
			(SELECT COUNT(*) FROM votes v WHERE v.jam_id = js.jam_id AND v.song_id = js.song_id)
		FROM jam_songs js
		JOIN songs s ON s.id = js.song_id
		WHERE js.jam_id = ?
		ORDER BY js.created_at
	`, jamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []JamSongState{}
	byID := map[string]int{}
	for rows.Next() {
		var st JamSongState
		var chordSheetURL, playedAt sql.NullString
		if err := rows.Scan(&st.SongID, &st.Title, &st.Artist, &chordSheetURL, &st.Played, &playedAt, &st.VoteCount); err != nil {
			return nil, err
		}
		if chordSheetURL.Valid {
			st.ChordSheetURL = &chordSheetURL.String
		}
		if playedAt.Valid {
			st.PlayedAt = &playedAt.String
		}
		st.Performers = []Performer{}
		byID[st.SongID] = len(songs)
		songs = append(songs, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perfRows, err := s.db.QueryContext(ctx, `
		SELECT pr.song_id, pr.attendee_id, a.name, pr.instrument, pr.registered_at
		FROM performance_registrations pr
		JOIN attendees a ON a.id = pr.attendee_id
		WHERE pr.jam_id = ?
		ORDER BY pr.registered_at
	`, jamID)
	if err != nil {
		return nil, err
	}
	defer perfRows.Close()

	for perfRows.Next() {
		var songID string
		var p Performer
		if err := perfRows.Scan(&songID, &p.AttendeeID, &p.Name, &p.Instrument, &p.RegisteredAt); err != nil {
			return nil, err
		}
		if i, ok := byID[songID]; ok {
			songs[i].Performers = append(songs[i].Performers, p)
		}
	}
	return songs, perfRows.Err()
}

func (s *SQLiteStore) MarkSongPlayed(ctx context.Context, jamID, songID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jam_songs
		SET played = 1, played_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE jam_id = ? AND song_id = ?
	`, jamID, songID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUnknownSong
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE songs
		SET times_played = times_played + 1, last_played = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?
	`, songID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jams
		SET current_song_id = ?, status = 'playing', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?
	`, songID, jamID); err != nil {
		return err
	}

	return tx.Commit()
}

// RegisterAttendee creates or rebinds an attendee. Lookup order: by session
// token first (stable browser identity), then by name. Any anonymous votes
// cast under the session token are claimed by the attendee in the same
// transaction; where the attendee already voted for a song, the anonymous
// duplicate is dropped.
func (s *SQLiteStore) RegisterAttendee(ctx context.Context, jamID, name, sessionID string) (Attendee, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attendee{}, err
	}
	defer tx.Rollback()

	var att Attendee
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, registered_at FROM attendees WHERE jam_id = ? AND session_id = ?
	`, jamID, sessionID).Scan(&att.ID, &att.Name, &att.RegisteredAt)
	switch {
	case err == nil:
		if att.Name != name {
			_, err = tx.ExecContext(ctx, `UPDATE attendees SET name = ? WHERE id = ?`, name, att.ID)
			if isConstraintErr(err) {
				return Attendee{}, ErrDuplicateAttendee
			}
			if err != nil {
				return Attendee{}, err
			}
			att.Name = name
		}
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, `
			SELECT id, registered_at FROM attendees WHERE jam_id = ? AND name = ?
		`, jamID, name).Scan(&att.ID, &att.RegisteredAt)
		switch {
		case err == nil:
			att.Name = name
			_, err = tx.ExecContext(ctx, `UPDATE attendees SET session_id = ? WHERE id = ?`, sessionID, att.ID)
			if isConstraintErr(err) {
				return Attendee{}, ErrDuplicateAttendee
			}
			if err != nil {
				return Attendee{}, err
			}
		case errors.Is(err, sql.ErrNoRows):
			att.Name = name
			err = tx.QueryRowContext(ctx, `
				INSERT INTO attendees (id, jam_id, name, session_id)
				VALUES (lower(hex(randomblob(16))), ?, ?, ?)
				RETURNING id, registered_at
			`, jamID, name, sessionID).Scan(&att.ID, &att.RegisteredAt)
			if isConstraintErr(err) {
				return Attendee{}, ErrDuplicateAttendee
			}
			if err != nil {
				return Attendee{}, err
			}
		default:
			return Attendee{}, err
		}
	default:
		return Attendee{}, err
	}

	// Claim anonymous votes cast under this session token. Drop duplicates
	// first so the re-key cannot violate the vote unique index.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM votes
		WHERE jam_id = ? AND session_id = ? AND attendee_id IS NULL
			AND song_id IN (SELECT song_id FROM votes WHERE jam_id = ? AND attendee_id = ?)
	`, jamID, sessionID, jamID, att.ID); err != nil {
		return Attendee{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE votes SET attendee_id = ?, session_id = NULL
		WHERE jam_id = ? AND session_id = ? AND attendee_id IS NULL
	`, att.ID, jamID, sessionID); err != nil {
		return Attendee{}, err
	}

	if err := tx.Commit(); err != nil {
		return Attendee{}, err
	}
	return att, nil
}

func (s *SQLiteStore) Attendees(ctx context.Context, jamID string) ([]Attendee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, registered_at FROM attendees
		WHERE jam_id = ?
		ORDER BY registered_at
	`, jamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendees := []Attendee{}
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.ID, &a.Name, &a.RegisteredAt); err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

func (s *SQLiteStore) AttendeeByID(ctx context.Context, jamID, id string) (Attendee, error) {
	var a Attendee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, registered_at FROM attendees WHERE jam_id = ? AND id = ?
	`, jamID, id).Scan(&a.ID, &a.Name, &a.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrUnknownAttendee
	}
	return a, err
}

func (s *SQLiteStore) AttendeeBySession(ctx context.Context, jamID, sessionID string) (Attendee, bool, error) {
	var a Attendee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, registered_at FROM attendees WHERE jam_id = ? AND session_id = ?
	`, jamID, sessionID).Scan(&a.ID, &a.Name, &a.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attendee{}, false, nil
	}
	if err != nil {
		return Attendee{}, false, err
	}
	return a, true, nil
}

// ToggleVote removes the actor's vote row if present, otherwise inserts one.
// The unique index on (jam_id, song_id, actor) makes a concurrent double
// insert impossible; a constraint failure means another toggle for the same
// key landed between our delete and insert, so retry the whole toggle.
func (s *SQLiteStore) ToggleVote(ctx context.Context, jamID, songID string, actor Actor) (bool, int, error) {
	var err error
	for range voteRetries {
		var voted bool
		var count int
		voted, count, err = s.toggleVoteOnce(ctx, jamID, songID, actor)
		if err == nil {
			return voted, count, nil
		}
		if !isConstraintErr(err) {
			return false, 0, err
		}
	}
	return false, 0, fmt.Errorf("toggling vote for song %s: %w", songID, err)
}

func (s *SQLiteStore) toggleVoteOnce(ctx context.Context, jamID, songID string, actor Actor) (bool, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM votes
		WHERE jam_id = ? AND song_id = ? AND COALESCE(attendee_id, session_id) = ?
	`, jamID, songID, actor.Key())
	if err != nil {
		return false, 0, err
	}
	deleted, _ := res.RowsAffected()

	voted := false
	if deleted == 0 {
		if actor.AttendeeID != "" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO votes (id, jam_id, song_id, attendee_id)
				VALUES (lower(hex(randomblob(16))), ?, ?, ?)
			`, jamID, songID, actor.AttendeeID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO votes (id, jam_id, song_id, session_id)
				VALUES (lower(hex(randomblob(16))), ?, ?, ?)
			`, jamID, songID, actor.SessionID)
		}
		if err != nil {
			return false, 0, err
		}
		voted = true
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE jam_id = ? AND song_id = ?
	`, jamID, songID).Scan(&count); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return voted, count, nil
}

func (s *SQLiteStore) VoteStatus(ctx context.Context, jamID, songID string, actor Actor) (bool, int, error) {
	var voted bool
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (
				SELECT 1 FROM votes
				WHERE jam_id = ? AND song_id = ? AND COALESCE(attendee_id, session_id) = ?
			),
			(SELECT COUNT(*) FROM votes WHERE jam_id = ? AND song_id = ?)
	`, jamID, songID, actor.Key(), jamID, songID).Scan(&voted, &count)
	return voted, count, err
}

func (s *SQLiteStore) RegisterPerformance(ctx context.Context, jamID, songID, attendeeID, instrument string) (Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Registration{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM jam_songs WHERE jam_id = ? AND song_id = ?
	`, jamID, songID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, ErrUnknownSong
	}
	if err != nil {
		return Registration{}, err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM attendees WHERE jam_id = ? AND id = ?
	`, jamID, attendeeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, ErrUnknownAttendee
	}
	if err != nil {
		return Registration{}, err
	}

	var held int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM performance_registrations WHERE jam_id = ? AND attendee_id = ?
	`, jamID, attendeeID).Scan(&held); err != nil {
		return Registration{}, err
	}
	if held >= s.perfLimit {
		return Registration{}, ErrPerformanceLimit
	}

	reg := Registration{
		SongID:     songID,
		AttendeeID: attendeeID,
		Instrument: instrument,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO performance_registrations (id, jam_id, song_id, attendee_id, instrument)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?)
		RETURNING id, registered_at
	`, jamID, songID, attendeeID, instrument).Scan(&reg.ID, &reg.RegisteredAt)
	if isConstraintErr(err) {
		return Registration{}, ErrDuplicateRegistration
	}
	if err != nil {
		return Registration{}, err
	}

	if err := tx.Commit(); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

func (s *SQLiteStore) UnregisterPerformance(ctx context.Context, jamID, songID, attendeeID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM performance_registrations
		WHERE jam_id = ? AND song_id = ? AND attendee_id = ?
	`, jamID, songID, attendeeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotRegistered
	}
	return nil
}

func (s *SQLiteStore) Performers(ctx context.Context, jamID, songID string) ([]Performer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pr.attendee_id, a.name, pr.instrument, pr.registered_at
		FROM performance_registrations pr
		JOIN attendees a ON a.id = pr.attendee_id
		WHERE pr.jam_id = ? AND pr.song_id = ?
		ORDER BY pr.registered_at
	`, jamID, songID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	performers := []Performer{}
	for rows.Next() {
		var p Performer
		if err := rows.Scan(&p.AttendeeID, &p.Name, &p.Instrument, &p.RegisteredAt); err != nil {
			return nil, err
		}
		performers = append(performers, p)
	}
	return performers, rows.Err()
}

func (s *SQLiteStore) Registrations(ctx context.Context, jamID, attendeeID string) ([]Registration, error) {
	query := `
		SELECT id, song_id, attendee_id, instrument, registered_at
		FROM performance_registrations
		WHERE jam_id = ?`
	args := []any{jamID}
	if attendeeID != "" {
		query += ` AND attendee_id = ?`
		args = append(args, attendeeID)
	}
	query += ` ORDER BY registered_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		var r Registration
		if err := rows.Scan(&r.ID, &r.SongID, &r.AttendeeID, &r.Instrument, &r.RegisteredAt); err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

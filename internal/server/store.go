package server

import (
	"context"
	"errors"
)

var (
	ErrUnknownJam      = errors.New("jam not found")
	ErrUnknownSong     = errors.New("song not found in this jam")
	ErrUnknownAttendee = errors.New("attendee not found")

	ErrDuplicateSong         = errors.New("song already in jam")
	ErrDuplicateAttendee     = errors.New("attendee name already taken")
	ErrDuplicateRegistration = errors.New("already registered to perform this song")
	ErrPerformanceLimit      = errors.New("performance registration limit reached")
	ErrNotRegistered         = errors.New("not registered to perform this song")
)

// Actor is the uniqueness key for votes: a registered attendee or an
// anonymous browser session. Exactly one of the two fields is set.
type Actor struct {
	AttendeeID string
	SessionID  string
}

// Key returns the value used as the vote uniqueness key.
func (a Actor) Key() string {
	if a.AttendeeID != "" {
		return a.AttendeeID
	}
	return a.SessionID
}

type Jam struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	JamDate       string  `json:"jamDate"`
	CurrentSongID *string `json:"currentSongId"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type JamSummary struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	JamDate   string `json:"jamDate"`
	SongCount int    `json:"songCount"`
	CreatedAt string `json:"createdAt"`
}

type Song struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	ChordSheetURL *string `json:"chordSheetUrl"`
	TimesPlayed   int     `json:"timesPlayed"`
	LastPlayed    *string `json:"lastPlayed"`
	CreatedAt     string  `json:"createdAt"`
}

type Attendee struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registeredAt"`
}

// Performer is a performance registration joined with the attendee name.
type Performer struct {
	AttendeeID   string `json:"attendeeId"`
	Name         string `json:"name"`
	Instrument   string `json:"instrument"`
	RegisteredAt string `json:"registeredAt"`
}

type Registration struct {
	ID           string `json:"id"`
	SongID       string `json:"songId"`
	AttendeeID   string `json:"attendeeId"`
	Instrument   string `json:"instrument"`
	RegisteredAt string `json:"registeredAt"`
}

// JamSongState is one queue entry in a jam snapshot. VoteCount is always
// derived by counting vote rows, never read from a stored counter. Position
// is the authoritative performance order assigned by rankSongs.
type JamSongState struct {
	SongID        string      `json:"songId"`
	Title         string      `json:"title"`
	Artist        string      `json:"artist"`
	ChordSheetURL *string     `json:"chordSheetUrl"`
	VoteCount     int         `json:"voteCount"`
	Played        bool        `json:"played"`
	PlayedAt      *string     `json:"playedAt"`
	Position      int         `json:"position"`
	Performers    []Performer `json:"performers"`
}

type Store interface {
	CreateJam(ctx context.Context, name, description, slug, jamDate string) (Jam, error)
	ListJams(ctx context.Context) ([]JamSummary, error)
	JamByID(ctx context.Context, id string) (Jam, error)
	JamBySlug(ctx context.Context, slug string) (Jam, error)
	JamSlugs(ctx context.Context) ([]string, error)

	CreateSong(ctx context.Context, title, artist string) (Song, error)
	SongByID(ctx context.Context, id string) (Song, error)
	FindSong(ctx context.Context, title, artist string) (Song, bool, error)
	AddSongToJam(ctx context.Context, jamID, songID string) error
	SongInJam(ctx context.Context, jamID, songID string) (bool, error)
	JamSongs(ctx context.Context, jamID string) ([]JamSongState, error)
	MarkSongPlayed(ctx context.Context, jamID, songID string) error

	RegisterAttendee(ctx context.Context, jamID, name, sessionID string) (Attendee, error)
	Attendees(ctx context.Context, jamID string) ([]Attendee, error)
	AttendeeByID(ctx context.Context, jamID, id string) (Attendee, error)
	AttendeeBySession(ctx context.Context, jamID, sessionID string) (Attendee, bool, error)

	ToggleVote(ctx context.Context, jamID, songID string, actor Actor) (voted bool, voteCount int, err error)
	VoteStatus(ctx context.Context, jamID, songID string, actor Actor) (voted bool, voteCount int, err error)

	RegisterPerformance(ctx context.Context, jamID, songID, attendeeID, instrument string) (Registration, error)
	UnregisterPerformance(ctx context.Context, jamID, songID, attendeeID string) error
	Performers(ctx context.Context, jamID, songID string) ([]Performer, error)
	Registrations(ctx context.Context, jamID, attendeeID string) ([]Registration, error)
}

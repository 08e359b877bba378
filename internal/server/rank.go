package server

import (
	"slices"
	"strings"
)

// rankSongs orders the queue by vote count descending, breaking ties by
// title ascending (case-insensitive), and assigns the 1-based performance
// order. It is a pure function of the current vote facts; the order is
// recomputed from scratch on every read rather than patched incrementally.
// Client-side display sorts never touch these positions.
func rankSongs(songs []JamSongState) []JamSongState {
	ranked := slices.Clone(songs)
	slices.SortStableFunc(ranked, func(a, b JamSongState) int {
		if a.VoteCount != b.VoteCount {
			return b.VoteCount - a.VoteCount
		}
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}

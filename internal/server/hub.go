package server

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sync"
)

// Broadcast event names. Clients treat any of them as "something changed,
// refetch the jam snapshot", so delivery is best-effort and unordered
// delivery is harmless.
const (
	EventVoteUpdate         = "vote_update"
	EventPerformanceUpdate  = "performance_update"
	EventSongAdded          = "song_added"
	EventAttendeeRegistered = "attendee_registered"
	EventSongPlayed         = "song_played"
)

const (
	hubShards     = 16
	subBufferSize = 16
)

// Hub fans change notifications out to every live connection watching a
// jam. The subscriber registry is sharded by jam id so unrelated jams never
// contend on one lock.
type Hub struct {
	logger *slog.Logger
	shards [hubShards]hubShard
}

type hubShard struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription is one live connection's feed of encoded event frames.
// C is closed when the subscription is closed.
type Subscription struct {
	C chan []byte

	jamID string
	hub   *Hub
	once  sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{logger: logger}
	for i := range h.shards {
		h.shards[i].subs = make(map[string]map[*Subscription]struct{})
	}
	return h
}

func (h *Hub) shard(jamID string) *hubShard {
	f := fnv.New32a()
	f.Write([]byte(jamID))
	return &h.shards[f.Sum32()%hubShards]
}

// Subscribe registers a connection under the jam's group and returns its
// subscription handle.
func (h *Hub) Subscribe(jamID string) *Subscription {
	sub := &Subscription{
		C:     make(chan []byte, subBufferSize),
		jamID: jamID,
		hub:   h,
	}

	sh := h.shard(jamID)
	sh.mu.Lock()
	if sh.subs[jamID] == nil {
		sh.subs[jamID] = make(map[*Subscription]struct{})
	}
	sh.subs[jamID][sub] = struct{}{}
	sh.mu.Unlock()
	return sub
}

// Close removes the subscription from its jam group and closes C. Safe to
// call any number of times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		sh := s.hub.shard(s.jamID)
		sh.mu.Lock()
		delete(sh.subs[s.jamID], s)
		if len(sh.subs[s.jamID]) == 0 {
			delete(sh.subs, s.jamID)
		}
		sh.mu.Unlock()
		close(s.C)
	})
}

// Publish encodes {"event": name, "data": data} once and delivers it to
// every subscriber of the jam. Delivery is at-most-once: a subscriber whose
// buffer is full misses the frame and catches up on its next refetch.
func (h *Hub) Publish(jamID, event string, data any) {
	msg, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		h.logger.Error("encoding broadcast event", "event", event, "error", err)
		return
	}

	sh := h.shard(jamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	for sub := range sh.subs[jamID] {
		select {
		case sub.C <- msg:
		default:
			// Slow subscriber: drop rather than block the publisher.
			h.logger.Debug("dropping event for slow subscriber", "jam_id", jamID, "event", event)
		}
	}
}

// SubscriberCount reports the live connections for one jam.
func (h *Hub) SubscriberCount(jamID string) int {
	sh := h.shard(jamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.subs[jamID])
}

package server

import (
	"context"
	"errors"
)

var errNoActor = errors.New("attendeeId or sessionId is required")

// resolveActor maps a mutation request to a stable vote/registration actor
// within one jam. A registered attendee id wins over a session token; a
// bare session token resolves to the attendee that registered under it, if
// any, so anonymous and registered requests from the same browser share one
// identity. Otherwise the session token itself is the actor.
func resolveActor(ctx context.Context, store Store, jamID, attendeeID, sessionID string) (Actor, error) {
	if attendeeID != "" {
		if _, err := store.AttendeeByID(ctx, jamID, attendeeID); err != nil {
			return Actor{}, err
		}
		return Actor{AttendeeID: attendeeID}, nil
	}
	if sessionID == "" {
		return Actor{}, errNoActor
	}

	att, ok, err := store.AttendeeBySession(ctx, jamID, sessionID)
	if err != nil {
		return Actor{}, err
	}
	if ok {
		return Actor{AttendeeID: att.ID}, nil
	}
	return Actor{SessionID: sessionID}, nil
}

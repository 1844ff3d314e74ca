package session

import (
	"context"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/presence"
)

// RosterHandle is a joined presence registration.
type RosterHandle interface {
	Updates() <-chan []models.Participant
	Announce(ctx context.Context, p models.Participant) error
	Leave(ctx context.Context) error
}

// Presence joins the local participant to a room roster.
type Presence interface {
	Join(ctx context.Context, roomID string, p models.Participant) (RosterHandle, error)
}

type trackerPresence struct {
	tracker *presence.Tracker
}

// FromTracker adapts a presence.Tracker to Presence.
func FromTracker(t *presence.Tracker) Presence {
	return trackerPresence{tracker: t}
}

func (p trackerPresence) Join(ctx context.Context, roomID string, participant models.Participant) (RosterHandle, error) {
	h, err := p.tracker.Join(ctx, roomID, participant)
	if err != nil {
		return nil, err
	}
	return h, nil
}

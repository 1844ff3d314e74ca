package presence

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MetricsCollector records roster activity.
type MetricsCollector interface {
	RecordRosterSync(roomID string, size int)
}

type noopMetrics struct{}

func (noopMetrics) RecordRosterSync(string, int) {}

// Tracker joins participants to rooms over a Transport.
type Tracker struct {
	transport Transport
	metrics   MetricsCollector
}

func NewTracker(transport Transport, metrics MetricsCollector) *Tracker {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Tracker{transport: transport, metrics: metrics}
}

// Handle is a live presence registration. Every value received from
// Updates is the complete roster and replaces the previous one.
type Handle struct {
	roomID  string
	key     string
	session Session
	updates chan []models.Participant
	metrics MetricsCollector

	leaveOnce sync.Once
	leaveErr  error
}

// Join announces p in roomID under the key p.ID.
func (t *Tracker) Join(ctx context.Context, roomID string, p models.Participant) (*Handle, error) {
	if roomID == "" || p.ID == "" {
		return nil, models.NewValidationError("presence", "room and participant id are required")
	}
	payload, err := EncodeMember(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode presence: %w", err)
	}
	session, err := t.transport.Join(ctx, roomID, p.ID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to join presence: %w", err)
	}

	h := &Handle{
		roomID:  roomID,
		key:     p.ID,
		session: session,
		updates: make(chan []models.Participant, 1),
		metrics: t.metrics,
	}
	go h.run()

	log.Info().Str("game_id", roomID).Str("participant_id", p.ID).Msg("joined presence")
	return h, nil
}

func (h *Handle) run() {
	defer close(h.updates)
	for snap := range h.session.Snapshots() {
		roster := Roster(snap)
		if dropped := len(snap) - len(roster); dropped > 0 {
			log.Warn().Str("game_id", h.roomID).Int("dropped", dropped).Msg("ignored malformed presence payloads")
		}
		h.metrics.RecordRosterSync(h.roomID, len(roster))
		offer(h.updates, roster)
	}
}

// Updates yields full rosters. It is closed after Leave or transport loss.
func (h *Handle) Updates() <-chan []models.Participant {
	return h.updates
}

// Announce republishes the participant under the same key, e.g. after a
// rename or role change.
func (h *Handle) Announce(ctx context.Context, p models.Participant) error {
	if p.ID != h.key {
		return models.NewValidationError("presence", "participant id cannot change while joined")
	}
	payload, err := EncodeMember(p)
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}
	if err := h.session.Update(ctx, payload); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

// Leave withdraws from the room. Safe to call more than once.
func (h *Handle) Leave(ctx context.Context) error {
	h.leaveOnce.Do(func() {
		h.leaveErr = h.session.Close(ctx)
		log.Info().Str("game_id", h.roomID).Str("participant_id", h.key).Msg("left presence")
	})
	return h.leaveErr
}

package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Member is the payload each participant publishes under its presence key.
type Member struct {
	Name        string `json:"name"`
	IsSpectator bool   `json:"isSpectator"`
}

// Snapshot is the full presence state of a room: key -> raw payload.
type Snapshot map[string]json.RawMessage

// Session is one participant's live registration in a room.
type Session interface {
	// Snapshots yields the whole room state after every change. The channel
	// only holds the latest snapshot and is closed when the session ends.
	Snapshots() <-chan Snapshot
	// Update replaces this participant's payload.
	Update(ctx context.Context, payload []byte) error
	// Close withdraws the payload and releases the session.
	Close(ctx context.Context) error
}

// Transport carries presence for a set of rooms.
type Transport interface {
	Join(ctx context.Context, roomID, key string, payload []byte) (Session, error)
}

// Wire messages shared by the websocket client and gateway.
const (
	MsgTrack   = "track"
	MsgUntrack = "untrack"
	MsgSync    = "sync"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string   `json:"type"`
	Members Snapshot `json:"members"`
}

// EncodeMember builds the payload for p.
func EncodeMember(p models.Participant) ([]byte, error) {
	return json.Marshal(Member{Name: p.Name, IsSpectator: p.IsSpectator})
}

// DecodeMember validates a payload received for key. Anything malformed is
// reported as not ok and the participant is treated as absent.
func DecodeMember(key string, raw []byte) (models.Participant, bool) {
	if strings.TrimSpace(key) == "" {
		return models.Participant{}, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return models.Participant{}, false
	}
	var m Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.Participant{}, false
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return models.Participant{}, false
	}
	return models.Participant{ID: key, Name: name, IsSpectator: m.IsSpectator}, true
}

// Roster decodes a snapshot into a sorted participant list, dropping
// malformed entries.
func Roster(snap Snapshot) []models.Participant {
	out := make([]models.Participant, 0, len(snap))
	for key, raw := range snap {
		if p, ok := DecodeMember(key, raw); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a == b {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out
}

// offer replaces whatever is buffered in ch with v. ch must have capacity 1
// and a single sender.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func cloneSnapshot(src map[string]json.RawMessage) Snapshot {
	out := make(Snapshot, len(src))
	for k, v := range src {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy holds the room rules that are a matter of choice rather than
// data integrity.
type Policy struct {
	// MinVotesToReveal rejects a reveal with fewer votes. Zero allows
	// revealing an empty round.
	MinVotesToReveal int `yaml:"min_votes_to_reveal"`
	// SpectatorsCanControl lets spectators reveal, reset and clear.
	SpectatorsCanControl bool `yaml:"spectators_can_control"`
}

func DefaultPolicy() Policy {
	return Policy{MinVotesToReveal: 1}
}

type Config struct {
	GameID string
	Policy Policy
	// ResyncInterval re-reads the room periodically in addition to change
	// notifications. Zero disables it.
	ResyncInterval time.Duration
	// DisconnectAfter is the number of consecutive failed refreshes after
	// which the session reports itself disconnected.
	DisconnectAfter int
	Clock           clockwork.Clock
}

func DefaultConfig(gameID string) Config {
	return Config{
		GameID:          gameID,
		Policy:          DefaultPolicy(),
		ResyncInterval:  30 * time.Second,
		DisconnectAfter: 3,
		Clock:           clockwork.NewRealClock(),
	}
}

package models

import "time"

// Phase is the voting lifecycle position of a single issue.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseVotingHidden  Phase = "voting_hidden"
	PhaseVotesRevealed Phase = "votes_revealed"
	PhaseFinalized     Phase = "finalized"
)

// Issue is a task under estimation within a room.
type Issue struct {
	ID            int64     `json:"id"`
	GameID        string    `json:"game_id"`
	Title         string    `json:"title"`
	IsVoting      bool      `json:"is_voting"`
	VotesRevealed bool      `json:"votes_revealed"`
	FinalVote     *string   `json:"final_vote,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Finalized reports whether a final estimate has been recorded.
func (i Issue) Finalized() bool {
	return i.FinalVote != nil && *i.FinalVote != ""
}

// Phase derives the lifecycle phase from the stored flags.
func (i Issue) Phase() Phase {
	switch {
	case i.Finalized():
		return PhaseFinalized
	case i.IsVoting && i.VotesRevealed:
		return PhaseVotesRevealed
	case i.IsVoting:
		return PhaseVotingHidden
	default:
		return PhaseIdle
	}
}

// NewerThan orders issues by creation time, falling back to id so the order
// is total.
func (i Issue) NewerThan(other Issue) bool {
	if i.CreatedAt.Equal(other.CreatedAt) {
		return i.ID > other.ID
	}
	return i.CreatedAt.After(other.CreatedAt)
}

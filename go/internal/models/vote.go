package models

import "time"

// Vote is one participant's estimate for one issue. There is at most one
// vote per (IssueID, ParticipantID); a later cast replaces the value.
type Vote struct {
	IssueID       int64     `json:"issue_id"`
	ParticipantID string    `json:"user_id"`
	Value         string    `json:"vote_value"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Card values offered to voters.
const (
	CardUnknown = "?"
	CardCoffee  = "coffee"
)

// Deck is the default estimation deck.
var Deck = []string{"0", "1", "2", "3", "5", "8", "13", "21", CardUnknown, CardCoffee}

// IsCard reports whether value is part of the default deck.
func IsCard(value string) bool {
	for _, c := range Deck {
		if c == value {
			return true
		}
	}
	return false
}

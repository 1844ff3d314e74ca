package models

// Participant is a person present in a room. Identity is asserted by the
// client, not verified.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsSpectator bool   `json:"isSpectator"`
}

// CanVote reports whether the participant may cast votes.
func (p Participant) CanVote() bool {
	return !p.IsSpectator
}

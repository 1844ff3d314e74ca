package session

import (
	"time"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Status describes how fresh the view is.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusLive         Status = "live"
	StatusStale        Status = "stale"
	StatusDisconnected Status = "disconnected"
)

// VoteEntry is a vote as the local participant may see it. Other
// participants' values stay hidden until the round is revealed.
type VoteEntry struct {
	ParticipantID string `json:"participant_id"`
	Value         string `json:"value,omitempty"`
	Hidden        bool   `json:"hidden"`
}

// SummaryEntry is one finalized issue.
type SummaryEntry struct {
	IssueID   int64  `json:"issue_id"`
	Title     string `json:"title"`
	FinalVote string `json:"final_vote"`
}

// View is an immutable snapshot of the room.
type View struct {
	GameID string
	Self   models.Participant
	Issues []models.Issue
	// Active is nil when no issue is being voted on.
	Active *models.Issue
	Phase  models.Phase
	Votes  []VoteEntry
	MyVote string
	Roster []models.Participant
	// Stats is only set once votes are revealed.
	Stats     *Stats
	Status    Status
	LastError string
	UpdatedAt time.Time
}

// HasVoted reports whether the participant has a vote on the active issue.
func (v View) HasVoted(participantID string) bool {
	for _, e := range v.Votes {
		if e.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// Summary lists finalized issues in creation order.
func (v View) Summary() []SummaryEntry {
	var out []SummaryEntry
	for _, is := range v.Issues {
		if is.Finalized() {
			out = append(out, SummaryEntry{IssueID: is.ID, Title: is.Title, FinalVote: *is.FinalVote})
		}
	}
	return out
}

func buildView(s *state) View {
	v := View{
		GameID:    s.gameID,
		Self:      s.self,
		Issues:    append([]models.Issue(nil), s.issues...),
		Phase:     models.PhaseIdle,
		Roster:    append([]models.Participant(nil), s.roster...),
		Status:    s.status,
		UpdatedAt: s.updatedAt,
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	if s.active == nil {
		return v
	}

	active := *s.active
	v.Active = &active
	v.Phase = active.Phase()

	revealed := active.VotesRevealed
	for _, vote := range s.votes {
		entry := VoteEntry{ParticipantID: vote.ParticipantID}
		switch {
		case revealed || vote.ParticipantID == s.self.ID:
			entry.Value = vote.Value
		default:
			entry.Hidden = true
		}
		if vote.ParticipantID == s.self.ID {
			v.MyVote = vote.Value
		}
		v.Votes = append(v.Votes, entry)
	}
	if revealed {
		stats := ComputeStats(s.votes)
		v.Stats = &stats
	}
	return v
}

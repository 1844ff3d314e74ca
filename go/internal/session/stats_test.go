package session

import (
	"testing"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func votesOf(values ...string) []models.Vote {
	out := make([]models.Vote, 0, len(values))
	for i, v := range values {
		out = append(out, models.Vote{IssueID: 1, ParticipantID: string(rune('a' + i)), Value: v})
	}
	return out
}

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name         string
		votes        []models.Vote
		average      float64
		hasAverage   bool
		consensus    bool
		numericVotes int
	}{
		{
			name:         "split vote",
			votes:        votesOf("5", "8"),
			average:      6.5,
			hasAverage:   true,
			numericVotes: 2,
		},
		{
			name:         "non-numeric excluded",
			votes:        votesOf("3", "3", "?"),
			average:      3,
			hasAverage:   true,
			consensus:    true,
			numericVotes: 2,
		},
		{
			name:  "only cards",
			votes: votesOf("?", "coffee"),
		},
		{
			name:         "fractional",
			votes:        votesOf("0.5", "0.5"),
			average:      0.5,
			hasAverage:   true,
			consensus:    true,
			numericVotes: 2,
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeStats(tt.votes)
			assert.Equal(t, len(tt.votes), s.TotalVotes)
			assert.Equal(t, tt.numericVotes, s.NumericVotes)
			assert.Equal(t, tt.hasAverage, s.HasAverage)
			assert.InDelta(t, tt.average, s.Average, 1e-9)
			assert.Equal(t, tt.consensus, s.Consensus)
		})
	}
}

func TestComputeStatsDistribution(t *testing.T) {
	s := ComputeStats(votesOf("3", "3", "?", "8"))
	assert.Equal(t, map[string]int{"3": 2, "?": 1, "8": 1}, s.Distribution)
}

func TestNumericValueRejectsSpecials(t *testing.T) {
	for _, v := range []string{"NaN", "Inf", "-Inf", "abc", ""} {
		_, ok := numericValue(v)
		assert.False(t, ok, v)
	}
	n, ok := numericValue(" 13 ")
	assert.True(t, ok)
	assert.Equal(t, 13.0, n)
}

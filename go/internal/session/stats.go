package session

import (
	"math"
	"strconv"
	"strings"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Stats summarizes revealed votes. Only numeric values count toward the
// average and consensus; cards like "?" are tallied but otherwise ignored.
type Stats struct {
	TotalVotes   int
	NumericVotes int
	Average      float64
	HasAverage   bool
	// Consensus is true when every numeric vote has the same value.
	Consensus    bool
	Distribution map[string]int
}

// ComputeStats derives Stats from a set of votes.
func ComputeStats(votes []models.Vote) Stats {
	s := Stats{
		TotalVotes:   len(votes),
		Distribution: make(map[string]int),
	}

	var sum float64
	distinct := make(map[float64]struct{})
	for _, v := range votes {
		s.Distribution[v.Value]++
		n, ok := numericValue(v.Value)
		if !ok {
			continue
		}
		s.NumericVotes++
		sum += n
		distinct[n] = struct{}{}
	}

	if s.NumericVotes > 0 {
		s.HasAverage = true
		s.Average = sum / float64(s.NumericVotes)
		s.Consensus = len(distinct) == 1
	}
	return s
}

func numericValue(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

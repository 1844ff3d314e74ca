package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

func renderView(v session.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s == %s", v.GameID, v.Status)
	if v.LastError != "" {
		fmt.Fprintf(&b, " (%s)", v.LastError)
	}
	b.WriteString("\n")

	if len(v.Issues) == 0 {
		b.WriteString("no issues yet, add one with: add <title>\n")
	}
	for _, is := range v.Issues {
		marker := " "
		if v.Active != nil && is.ID == v.Active.ID {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s #%d %s [%s]", marker, is.ID, is.Title, describePhase(is.Phase()))
		if is.Finalized() {
			fmt.Fprintf(&b, " = %s", *is.FinalVote)
		}
		b.WriteString("\n")
	}

	if v.Active != nil {
		b.WriteString(renderVotes(v))
	}

	names := make([]string, 0, len(v.Roster))
	for _, p := range v.Roster {
		name := p.Name
		if p.IsSpectator {
			name += " (spectator)"
		}
		if p.ID == v.Self.ID {
			name += " (you)"
		}
		names = append(names, name)
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, "here: %s\n", strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderVotes(v session.View) string {
	var b strings.Builder
	names := make(map[string]string, len(v.Roster))
	for _, p := range v.Roster {
		names[p.ID] = p.Name
	}

	entries := make([]string, 0, len(v.Votes))
	for _, e := range v.Votes {
		who := names[e.ParticipantID]
		if who == "" {
			who = e.ParticipantID
		}
		if e.Hidden {
			entries = append(entries, who+": voted")
		} else {
			entries = append(entries, who+": "+e.Value)
		}
	}
	sort.Strings(entries)
	fmt.Fprintf(&b, "votes (%d): %s\n", len(v.Votes), strings.Join(entries, ", "))

	if v.MyVote != "" {
		fmt.Fprintf(&b, "your vote: %s\n", v.MyVote)
	}
	if s := v.Stats; s != nil {
		if s.HasAverage {
			fmt.Fprintf(&b, "average: %.1f", s.Average)
		} else {
			b.WriteString("average: n/a")
		}
		if s.Consensus {
			b.WriteString(", consensus!")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderSummary(v session.View) string {
	entries := v.Summary()
	if len(entries) == 0 {
		return "nothing estimated yet"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "#%d %s: %s\n", e.IssueID, e.Title, e.FinalVote)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderNotice(n session.Notice) string {
	if n.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", n.Level, n.Message, n.Err)
	}
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

func describePhase(p models.Phase) string {
	switch p {
	case models.PhaseVotingHidden:
		return "voting"
	case models.PhaseVotesRevealed:
		return "revealed"
	case models.PhaseFinalized:
		return "done"
	default:
		return "waiting"
	}
}

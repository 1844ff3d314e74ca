package session

import (
	"context"
	"strings"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/rs/zerolog/log"
)

// CreateIssue adds an issue to the room.
func (c *Controller) CreateIssue(ctx context.Context, title string) (*models.Issue, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var created *models.Issue
	err := c.mutate(ctx, "create_issue", func(ctx context.Context) error {
		is, err := c.issues.Create(ctx, c.cfg.GameID, title)
		created = is
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteIssue removes an issue and its votes.
func (c *Controller) DeleteIssue(ctx context.Context, issueID int64) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if _, ok := c.findIssue(issueID); !ok {
		return models.ErrIssueNotFound
	}
	return c.mutate(ctx, "delete_issue", func(ctx context.Context) error {
		return c.issues.DeleteWithVotes(ctx, issueID)
	})
}

// ActivateIssue starts a fresh voting round on issueID. Any other active
// issue stops voting and the target's previous votes are discarded.
func (c *Controller) ActivateIssue(ctx context.Context, issueID int64) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	is, ok := c.findIssue(issueID)
	if !ok {
		return models.ErrIssueNotFound
	}
	if is.Finalized() {
		return models.ErrIssueFinalized
	}
	return c.mutate(ctx, "activate_issue", func(ctx context.Context) error {
		return c.issues.SetActiveIssue(ctx, c.cfg.GameID, issueID)
	})
}

// CastVote records or replaces the local participant's vote on the active
// issue.
func (c *Controller) CastVote(ctx context.Context, value string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	self := c.self()
	if !self.CanVote() {
		return models.ErrSpectator
	}
	active, _, _ := c.current()
	if active == nil {
		return models.ErrNoActiveIssue
	}
	if active.VotesRevealed {
		return models.ErrVotesRevealed
	}
	return c.mutate(ctx, "cast_vote", func(ctx context.Context) error {
		_, err := c.votes.Cast(ctx, active.ID, self.ID, value)
		return err
	})
}

// RevealVotes shows every vote on the active issue. Revealing twice is a
// no-op.
func (c *Controller) RevealVotes(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	active, votes, _ := c.current()
	if active == nil {
		return models.ErrNoActiveIssue
	}
	if err := c.canControl(); err != nil {
		return err
	}
	if active.VotesRevealed {
		return nil
	}
	if len(votes) < c.cfg.Policy.MinVotesToReveal {
		return models.ErrNotEnoughVotes
	}
	return c.mutate(ctx, "reveal_votes", func(ctx context.Context) error {
		return c.issues.RevealVotes(ctx, active.ID)
	})
}

// ResetVoting discards the active issue's votes and hides the next round.
func (c *Controller) ResetVoting(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	active, votes, _ := c.current()
	if active == nil {
		return models.ErrNoActiveIssue
	}
	if err := c.canControl(); err != nil {
		return err
	}
	before := make(map[string]time.Time, len(votes))
	for _, v := range votes {
		before[v.ParticipantID] = v.UpdatedAt
	}
	return c.mutate(ctx, "reset_voting", func(ctx context.Context) error {
		if err := c.issues.ResetVoting(ctx, active.ID); err != nil {
			return err
		}
		c.resetIssue, c.resetVotes = active.ID, before
		return nil
	})
}

// SetFinalVote records the agreed estimate and ends voting on the active
// issue.
func (c *Controller) SetFinalVote(ctx context.Context, value string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	value = strings.TrimSpace(value)
	if value == "" {
		return models.NewValidationError("final_vote", "must not be empty")
	}
	active, _, _ := c.current()
	if active == nil {
		return models.ErrNoActiveIssue
	}
	if !active.VotesRevealed {
		return models.ErrVotesHidden
	}
	if err := c.canControl(); err != nil {
		return err
	}
	return c.mutate(ctx, "set_final_vote", func(ctx context.Context) error {
		return c.issues.SetFinalVote(ctx, active.ID, value)
	})
}

// ClearSession deletes every issue and vote in the room.
func (c *Controller) ClearSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.canControl(); err != nil {
		return err
	}
	return c.mutate(ctx, "clear_session", func(ctx context.Context) error {
		return c.issues.ClearGame(ctx, c.cfg.GameID)
	})
}

// UpdateProfile changes the local participant's name or role and
// re-announces it to the room. The id cannot change.
func (c *Controller) UpdateProfile(ctx context.Context, p models.Participant) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if p.ID != c.self().ID {
		return models.NewValidationError("participant", "id cannot change")
	}
	if strings.TrimSpace(p.Name) == "" {
		return models.NewValidationError("name", "must not be empty")
	}

	c.mu.Lock()
	c.state.self = p
	c.mu.Unlock()

	if c.roster != nil {
		if err := c.roster.Announce(ctx, p); err != nil {
			log.Warn().Err(err).Str("game_id", c.cfg.GameID).Msg("failed to announce profile")
			c.notify(NoticeWarning, "profile saved but not announced", err)
		}
	}
	c.publish()
	return nil
}

func (c *Controller) findIssue(id int64) (models.Issue, bool) {
	_, _, list := c.current()
	for _, is := range list {
		if is.ID == id {
			return is, true
		}
	}
	return models.Issue{}, false
}

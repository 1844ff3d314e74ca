package votes

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/retry"
	"github.com/rs/zerolog/log"
)

// VotesRepository defines what the app layer needs from the repository
type VotesRepository interface {
	ListForIssue(ctx context.Context, issueID int64) ([]models.Vote, error)
	Cast(ctx context.Context, issueID int64, participantID, value string) (*models.Vote, error)
	DeleteForIssue(ctx context.Context, issueID int64) error
}

// Feed delivers vote change notifications for an issue.
type Feed interface {
	SubscribeIssue(issueID int64, fn changefeed.Handler) *changefeed.Subscription
}

// App is the vote client used by the session.
type App struct {
	repo  VotesRepository
	feed  Feed
	clock clockwork.Clock
	retry retry.Config
}

// NewApp creates a new votes App
func NewApp(repo VotesRepository, feed Feed, clock clockwork.Clock, cfg retry.Config) *App {
	return &App{repo: repo, feed: feed, clock: clock, retry: cfg}
}

func (a *App) ListForIssue(ctx context.Context, issueID int64) ([]models.Vote, error) {
	if issueID <= 0 {
		return nil, models.NewValidationError("issue id", "must be positive")
	}
	var out []models.Vote
	err := a.do(ctx, "list votes", func(ctx context.Context) error {
		votes, err := a.repo.ListForIssue(ctx, issueID)
		out = votes
		return err
	})
	return out, err
}

// Cast is safe to retry since it is an upsert.
func (a *App) Cast(ctx context.Context, issueID int64, participantID, value string) (*models.Vote, error) {
	if issueID <= 0 {
		return nil, models.NewValidationError("issue id", "must be positive")
	}
	if strings.TrimSpace(participantID) == "" {
		return nil, models.NewValidationError("participant id", "must not be empty")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, models.NewValidationError("vote", "must not be empty")
	}

	var out *models.Vote
	err := a.do(ctx, "cast vote", func(ctx context.Context) error {
		v, err := a.repo.Cast(ctx, issueID, participantID, value)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("issue_id", issueID).Str("participant_id", participantID).Msg("vote cast")
	return out, nil
}

func (a *App) DeleteForIssue(ctx context.Context, issueID int64) error {
	if issueID <= 0 {
		return models.NewValidationError("issue id", "must be positive")
	}
	return a.do(ctx, "delete votes", func(ctx context.Context) error {
		return a.repo.DeleteForIssue(ctx, issueID)
	})
}

// Subscribe registers onChange for vote changes of the issue.
func (a *App) Subscribe(issueID int64, onChange changefeed.Handler) *changefeed.Subscription {
	return a.feed.SubscribeIssue(issueID, onChange)
}

func (a *App) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, a.clock, a.retry, op, fn)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("vote store operation failed")
	return &models.RepositoryError{Op: op, Err: err}
}

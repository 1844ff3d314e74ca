package issues

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

// IssuesRepository defines what the app layer needs from the repository
type IssuesRepository interface {
	List(ctx context.Context, gameID string) ([]models.Issue, error)
	Create(ctx context.Context, gameID, title string) (*models.Issue, error)
	Delete(ctx context.Context, id int64) error
	DeleteWithVotes(ctx context.Context, id int64) error
	ClearGame(ctx context.Context, gameID string) error
	SetActiveIssue(ctx context.Context, gameID string, issueID int64) error
	ClearOtherActive(ctx context.Context, gameID string, keepID int64) error
	RevealVotes(ctx context.Context, id int64) error
	ResetVoting(ctx context.Context, id int64) error
	SetFinalVote(ctx context.Context, id int64, value string) error
}

// Feed delivers issue change notifications for a room.
type Feed interface {
	SubscribeGame(gameID string, fn changefeed.Handler) *changefeed.Subscription
}

// App is the issue client used by the session: it validates input, retries
// transient store failures and exposes the room's change subscription.
type App struct {
	repo  IssuesRepository
	feed  Feed
	clock clockwork.Clock
	retry retry.Config
}

// NewApp creates a new issues App
func NewApp(repo IssuesRepository, feed Feed, clock clockwork.Clock, cfg retry.Config) *App {
	return &App{repo: repo, feed: feed, clock: clock, retry: cfg}
}

func (a *App) List(ctx context.Context, gameID string) ([]models.Issue, error) {
	if err := validateGame(gameID); err != nil {
		return nil, err
	}
	var out []models.Issue
	err := a.do(ctx, "list issues", a.retry, func(ctx context.Context) error {
		issues, err := a.repo.List(ctx, gameID)
		out = issues
		return err
	})
	return out, err
}

// Create is not retried since a lost response may hide a committed insert.
func (a *App) Create(ctx context.Context, gameID, title string) (*models.Issue, error) {
	if err := validateGame(gameID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.NewValidationError("title", "must not be empty")
	}

	var out *models.Issue
	err := a.do(ctx, "create issue", retry.Config{}, func(ctx context.Context) error {
		issue, err := a.repo.Create(ctx, gameID, title)
		out = issue
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Int64("issue_id", out.ID).Msg("issue created")
	return out, nil
}

// Delete removes the issue row. Its votes must be deleted first.
func (a *App) Delete(ctx context.Context, id int64) error {
	if err := validateIssue(id); err != nil {
		return err
	}
	return a.do(ctx, "delete issue", a.retry, func(ctx context.Context) error {
		return a.repo.Delete(ctx, id)
	})
}

// DeleteWithVotes removes the issue together with its votes. Each retry
// runs the whole transaction again.
func (a *App) DeleteWithVotes(ctx context.Context, id int64) error {
	if err := validateIssue(id); err != nil {
		return err
	}
	return a.do(ctx, "delete issue with votes", a.retry, func(ctx context.Context) error {
		return a.repo.DeleteWithVotes(ctx, id)
	})
}

func (a *App) ClearGame(ctx context.Context, gameID string) error {
	if err := validateGame(gameID); err != nil {
		return err
	}
	err := a.do(ctx, "clear game", a.retry, func(ctx context.Context) error {
		return a.repo.ClearGame(ctx, gameID)
	})
	if err == nil {
		log.Info().Str("game_id", gameID).Msg("game cleared")
	}
	return err
}

func (a *App) SetActiveIssue(ctx context.Context, gameID string, issueID int64) error {
	if err := validateGame(gameID); err != nil {
		return err
	}
	if err := validateIssue(issueID); err != nil {
		return err
	}
	return a.do(ctx, "set active issue", a.retry, func(ctx context.Context) error {
		return a.repo.SetActiveIssue(ctx, gameID, issueID)
	})
}

func (a *App) ClearOtherActive(ctx context.Context, gameID string, keepID int64) error {
	if err := validateGame(gameID); err != nil {
		return err
	}
	return a.do(ctx, "clear other active issues", a.retry, func(ctx context.Context) error {
		return a.repo.ClearOtherActive(ctx, gameID, keepID)
	})
}

func (a *App) RevealVotes(ctx context.Context, id int64) error {
	if err := validateIssue(id); err != nil {
		return err
	}
	return a.do(ctx, "reveal votes", a.retry, func(ctx context.Context) error {
		return a.repo.RevealVotes(ctx, id)
	})
}

func (a *App) ResetVoting(ctx context.Context, id int64) error {
	if err := validateIssue(id); err != nil {
		return err
	}
	return a.do(ctx, "reset voting", a.retry, func(ctx context.Context) error {
		return a.repo.ResetVoting(ctx, id)
	})
}

func (a *App) SetFinalVote(ctx context.Context, id int64, value string) error {
	if err := validateIssue(id); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return models.NewValidationError("final vote", "must not be empty")
	}
	return a.do(ctx, "set final vote", a.retry, func(ctx context.Context) error {
		return a.repo.SetFinalVote(ctx, id, value)
	})
}

// Subscribe registers onChange for issue changes of the room.
func (a *App) Subscribe(gameID string, onChange changefeed.Handler) *changefeed.Subscription {
	return a.feed.SubscribeGame(gameID, onChange)
}

// do runs fn with retries and converts exhausted failures into a
// RepositoryError. Missing issues are not retried.
func (a *App) do(ctx context.Context, op string, cfg retry.Config, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, a.clock, cfg, op, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, models.ErrIssueNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrIssueNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("issue store operation failed")
	return &models.RepositoryError{Op: op, Err: err}
}

func validateGame(gameID string) error {
	if strings.TrimSpace(gameID) == "" {
		return models.NewValidationError("game id", "must not be empty")
	}
	return nil
}

func validateIssue(id int64) error {
	if id <= 0 {
		return models.NewValidationError("issue id", "must be positive")
	}
	return nil
}

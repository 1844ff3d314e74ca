package issues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/sqlutil"
)

// ActivationMode selects how the active issue is switched.
type ActivationMode string

const (
	// ActivateProcedure calls set_voting_issue in a single round trip.
	ActivateProcedure ActivationMode = "procedure"
	// ActivateSteps runs clear / delete votes / start as ordered statements in
	// one transaction, for stores without the procedure.
	ActivateSteps ActivationMode = "steps"
)

// Repository implements issue data access operations
type Repository struct {
	store Store
	mode  ActivationMode
}

// NewRepository creates a new issues repository
func NewRepository(store Store, mode ActivationMode) *Repository {
	if mode == "" {
		mode = ActivateProcedure
	}
	return &Repository{store: store, mode: mode}
}

// List returns the room's issues in creation order.
func (r *Repository) List(ctx context.Context, gameID string) ([]models.Issue, error) {
	rows, err := r.store.ListIssuesByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	out := make([]models.Issue, 0, len(rows))
	for _, row := range rows {
		out = append(out, *dbIssueToModel(row))
	}
	return out, nil
}

// Get returns one issue.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Issue, error) {
	row, err := r.store.GetIssue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", notFound(err))
	}
	return dbIssueToModel(row), nil
}

// Create inserts an issue with store defaults for the voting flags.
func (r *Repository) Create(ctx context.Context, gameID, title string) (*models.Issue, error) {
	row, err := r.store.InsertIssue(ctx, pokerdb.InsertIssueParams{
		GameID: gameID,
		Title:  title,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return dbIssueToModel(row), nil
}

// Delete removes the issue row only. Votes must already be gone.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if err := r.store.DeleteIssue(ctx, id); err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	return nil
}

// DeleteWithVotes removes the issue and its votes in one transaction, so a
// vote cast concurrently cannot leave the issue undeletable.
func (r *Repository) DeleteWithVotes(ctx context.Context, id int64) error {
	err := r.store.InTx(ctx, func(q Querier) error {
		if err := q.DeleteVotesByIssue(ctx, id); err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		if err := q.DeleteIssue(ctx, id); err != nil {
			return fmt.Errorf("delete issue: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete issue with votes: %w", err)
	}
	return nil
}

// ClearGame deletes every vote and then every issue of the room.
func (r *Repository) ClearGame(ctx context.Context, gameID string) error {
	err := r.store.InTx(ctx, func(q Querier) error {
		if err := q.DeleteVotesByGame(ctx, gameID); err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		if err := q.DeleteIssuesByGame(ctx, gameID); err != nil {
			return fmt.Errorf("delete issues: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear game: %w", err)
	}
	return nil
}

// SetActiveIssue makes issueID the room's only voting issue with a fresh,
// hidden round.
func (r *Repository) SetActiveIssue(ctx context.Context, gameID string, issueID int64) error {
	var err error
	switch r.mode {
	case ActivateSteps:
		err = r.store.InTx(ctx, func(q Querier) error {
			row, err := q.GetIssue(ctx, issueID)
			if err != nil {
				return notFound(err)
			}
			if row.GameID != gameID {
				return fmt.Errorf("%w: issue %d is not in game %s", models.ErrIssueNotFound, issueID, gameID)
			}
			if err := q.ClearVotingExcept(ctx, pokerdb.ClearVotingExceptParams{GameID: gameID, KeepID: issueID}); err != nil {
				return fmt.Errorf("clear voting: %w", err)
			}
			if err := q.DeleteVotesByIssue(ctx, issueID); err != nil {
				return fmt.Errorf("delete votes: %w", err)
			}
			if err := q.StartVoting(ctx, pokerdb.StartVotingParams{ID: issueID, GameID: gameID}); err != nil {
				return fmt.Errorf("start voting: %w", err)
			}
			return nil
		})
	default:
		err = notFound(r.store.SetVotingIssue(ctx, pokerdb.SetVotingIssueParams{GameID: gameID, IssueID: issueID}))
	}
	if err != nil {
		return fmt.Errorf("failed to set active issue: %w", err)
	}
	return nil
}

// ClearOtherActive stops voting on every issue of the room except keepID.
func (r *Repository) ClearOtherActive(ctx context.Context, gameID string, keepID int64) error {
	if err := r.store.ClearVotingExcept(ctx, pokerdb.ClearVotingExceptParams{GameID: gameID, KeepID: keepID}); err != nil {
		return fmt.Errorf("failed to clear other active issues: %w", err)
	}
	return nil
}

// RevealVotes sets votes_revealed; repeating it changes nothing.
func (r *Repository) RevealVotes(ctx context.Context, id int64) error {
	if err := r.store.SetVotesRevealed(ctx, pokerdb.SetVotesRevealedParams{ID: id, VotesRevealed: true}); err != nil {
		return fmt.Errorf("failed to reveal votes: %w", err)
	}
	return nil
}

// ResetVoting deletes the issue's votes, then hides them again.
func (r *Repository) ResetVoting(ctx context.Context, id int64) error {
	err := r.store.InTx(ctx, func(q Querier) error {
		if err := q.DeleteVotesByIssue(ctx, id); err != nil {
			return fmt.Errorf("delete votes: %w", err)
		}
		if err := q.SetVotesRevealed(ctx, pokerdb.SetVotesRevealedParams{ID: id, VotesRevealed: false}); err != nil {
			return fmt.Errorf("hide votes: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset voting: %w", err)
	}
	return nil
}

// SetFinalVote records the agreed estimate and ends voting on the issue.
func (r *Repository) SetFinalVote(ctx context.Context, id int64, value string) error {
	if err := r.store.SetFinalVote(ctx, pokerdb.SetFinalVoteParams{
		ID:        id,
		FinalVote: sqlutil.ToSqlString(&value),
	}); err != nil {
		return fmt.Errorf("failed to set final vote: %w", err)
	}
	return nil
}

// notFound maps a missing row, or set_voting_issue's no_data_found raise,
// to ErrIssueNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", models.ErrIssueNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "P0002" {
		return fmt.Errorf("%w: %s", models.ErrIssueNotFound, pgErr.Message)
	}
	return err
}

// dbIssueToModel converts a database issue to domain model
func dbIssueToModel(row pokerdb.Issue) *models.Issue {
	return &models.Issue{
		ID:            row.ID,
		GameID:        row.GameID,
		Title:         row.Title,
		IsVoting:      row.IsVoting,
		VotesRevealed: row.VotesRevealed,
		FinalVote:     sqlutil.FromSqlStringPtr(row.FinalVote),
		CreatedAt:     row.CreatedAt,
	}
}

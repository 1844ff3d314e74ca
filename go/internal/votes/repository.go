package votes

import (
	"context"
	"fmt"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	ListVotesByIssue(ctx context.Context, issueID int64) ([]pokerdb.Vote, error)
	UpsertVote(ctx context.Context, arg pokerdb.UpsertVoteParams) (pokerdb.Vote, error)
	DeleteVotesByIssue(ctx context.Context, issueID int64) error
}

// Repository implements vote data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new votes repository
func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) ListForIssue(ctx context.Context, issueID int64) ([]models.Vote, error) {
	rows, err := r.queries.ListVotesByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	out := make([]models.Vote, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbVoteToModel(row))
	}
	return out, nil
}

// Cast upserts on (issue, participant); the latest value wins.
func (r *Repository) Cast(ctx context.Context, issueID int64, participantID, value string) (*models.Vote, error) {
	row, err := r.queries.UpsertVote(ctx, pokerdb.UpsertVoteParams{
		IssueID:   issueID,
		UserID:    participantID,
		VoteValue: value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cast vote: %w", err)
	}
	v := dbVoteToModel(row)
	return &v, nil
}

func (r *Repository) DeleteForIssue(ctx context.Context, issueID int64) error {
	if err := r.queries.DeleteVotesByIssue(ctx, issueID); err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	return nil
}

func dbVoteToModel(row pokerdb.Vote) models.Vote {
	return models.Vote{
		IssueID:       row.IssueID,
		ParticipantID: row.UserID,
		Value:         row.VoteValue,
		UpdatedAt:     row.UpdatedAt,
	}
}

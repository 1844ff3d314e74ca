package issues

import (
	"context"
	"database/sql"

	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	ListIssuesByGame(ctx context.Context, gameID string) ([]pokerdb.Issue, error)
	GetIssue(ctx context.Context, id int64) (pokerdb.Issue, error)
	InsertIssue(ctx context.Context, arg pokerdb.InsertIssueParams) (pokerdb.Issue, error)
	DeleteIssue(ctx context.Context, id int64) error
	DeleteIssuesByGame(ctx context.Context, gameID string) error
	ClearVotingExcept(ctx context.Context, arg pokerdb.ClearVotingExceptParams) error
	StartVoting(ctx context.Context, arg pokerdb.StartVotingParams) error
	SetVotesRevealed(ctx context.Context, arg pokerdb.SetVotesRevealedParams) error
	SetFinalVote(ctx context.Context, arg pokerdb.SetFinalVoteParams) error
	SetVotingIssue(ctx context.Context, arg pokerdb.SetVotingIssueParams) error
	DeleteVotesByIssue(ctx context.Context, issueID int64) error
	DeleteVotesByGame(ctx context.Context, gameID string) error
}

// Store is a Querier that can also run a group of queries atomically.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// PostgresStore binds the generated queries to a *sql.DB.
type PostgresStore struct {
	*pokerdb.Queries
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{Queries: pokerdb.New(db), db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	return sqlutil.Run(ctx, s.db, s.Queries.WithTx, func(q *pokerdb.Queries) error {
		return fn(q)
	})
}

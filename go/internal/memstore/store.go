// Package memstore is an in-process implementation of the issue and vote
// stores. It enforces the same constraints as the Postgres schema and emits
// row changes the way the database triggers do, which makes it usable for a
// single-process room and as a test double.
package memstore

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/issues"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
)

type mutation func(st *state) ([]changefeed.Change, error)

// ops implements the query surface against whatever state run hands it.
type ops struct {
	run   func(m mutation) error
	clock clockwork.Clock
}

// Store is safe for concurrent use.
type Store struct {
	ops

	mu           sync.Mutex
	st           *state
	nextChangeID int64
	failures     []error
	publisher    changefeed.Publisher
}

var (
	_ issues.Store   = (*Store)(nil)
	_ issues.Querier = ops{}
)

// New creates an empty store. publisher may be nil.
func New(publisher changefeed.Publisher, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{st: newState(), publisher: publisher}
	s.ops = ops{run: s.run, clock: clock}
	return s
}

// FailNext makes the next n store calls fail with err.
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, err)
	}
}

// Seed inserts an issue as-is, bypassing the one-voting-issue constraint.
// It exists to reproduce rooms left inconsistent by older clients.
func (s *Store) Seed(is pokerdb.Issue) pokerdb.Issue {
	s.mu.Lock()
	s.st.nextIssueID++
	is.ID = s.st.nextIssueID
	if is.CreatedAt.IsZero() {
		is.CreatedAt = s.st.createdAt(s.clock.Now())
	}
	s.st.issues[is.ID] = is
	changes := s.stamp([]changefeed.Change{issueChange(changefeed.OpInsert, nil, &is)})
	s.mu.Unlock()

	s.publish(changes)
	return is
}

func (s *Store) run(m mutation) error {
	s.mu.Lock()
	if err := s.popFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	// each statement is atomic: mutate a copy and keep it only on success
	work := s.st.clone()
	changes, err := m(work)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.st = work
	changes = s.stamp(changes)
	s.mu.Unlock()

	s.publish(changes)
	return nil
}

// InTx runs fn against a private copy of the state and swaps it in when fn
// succeeds. Changes are published only after commit.
func (s *Store) InTx(ctx context.Context, fn func(q issues.Querier) error) error {
	s.mu.Lock()
	if err := s.popFailure(); err != nil {
		s.mu.Unlock()
		return err
	}

	work := s.st.clone()
	var pending []changefeed.Change
	tx := ops{
		clock: s.clock,
		run: func(m mutation) error {
			changes, err := m(work)
			pending = append(pending, changes...)
			return err
		},
	}

	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.st = work
	pending = s.stamp(pending)
	s.mu.Unlock()

	s.publish(pending)
	return nil
}

func (s *Store) popFailure() error {
	if len(s.failures) == 0 {
		return nil
	}
	err := s.failures[0]
	s.failures = s.failures[1:]
	return err
}

func (s *Store) stamp(changes []changefeed.Change) []changefeed.Change {
	now := s.clock.Now()
	for i := range changes {
		s.nextChangeID++
		changes[i].ID = s.nextChangeID
		changes[i].At = now
	}
	return changes
}

func (s *Store) publish(changes []changefeed.Change) {
	if s.publisher == nil {
		return
	}
	for _, c := range changes {
		s.publisher.Publish(c)
	}
}

func (o ops) ListIssuesByGame(ctx context.Context, gameID string) ([]pokerdb.Issue, error) {
	var out []pokerdb.Issue
	err := o.run(func(st *state) ([]changefeed.Change, error) {
		out = st.listIssues(gameID)
		return nil, nil
	})
	return out, err
}

func (o ops) GetIssue(ctx context.Context, id int64) (pokerdb.Issue, error) {
	var out pokerdb.Issue
	err := o.run(func(st *state) ([]changefeed.Change, error) {
		is, err := st.getIssue(id)
		out = is
		return nil, err
	})
	return out, err
}

func (o ops) InsertIssue(ctx context.Context, arg pokerdb.InsertIssueParams) (pokerdb.Issue, error) {
	var out pokerdb.Issue
	err := o.run(func(st *state) ([]changefeed.Change, error) {
		is, changes, err := st.insertIssue(pokerdb.Issue{
			GameID:    arg.GameID,
			Title:     arg.Title,
			CreatedAt: st.createdAt(o.clock.Now()),
		})
		out = is
		return changes, err
	})
	return out, err
}

func (o ops) DeleteIssue(ctx context.Context, id int64) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.deleteIssue(id)
	})
}

func (o ops) DeleteIssuesByGame(ctx context.Context, gameID string) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		var changes []changefeed.Change
		for _, id := range st.sortedIssueIDs() {
			if st.issues[id].GameID != gameID {
				continue
			}
			deleted, err := st.deleteIssue(id)
			if err != nil {
				return changes, err
			}
			changes = append(changes, deleted...)
		}
		return changes, nil
	})
}

func (o ops) ClearVotingExcept(ctx context.Context, arg pokerdb.ClearVotingExceptParams) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.clearVotingExcept(arg.GameID, arg.KeepID), nil
	})
}

func (o ops) StartVoting(ctx context.Context, arg pokerdb.StartVotingParams) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.startVoting(arg.ID, arg.GameID)
	})
}

func (o ops) SetVotesRevealed(ctx context.Context, arg pokerdb.SetVotesRevealedParams) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.updateIssue(arg.ID, func(i *pokerdb.Issue) { i.VotesRevealed = arg.VotesRevealed }), nil
	})
}

func (o ops) SetFinalVote(ctx context.Context, arg pokerdb.SetFinalVoteParams) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.updateIssue(arg.ID, func(i *pokerdb.Issue) {
			i.FinalVote = arg.FinalVote
			i.IsVoting = false
		}), nil
	})
}

func (o ops) SetVotingIssue(ctx context.Context, arg pokerdb.SetVotingIssueParams) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		// the procedure is atomic: apply to a copy and keep it only on success
		work := st.clone()
		changes, err := work.setVotingIssue(arg.GameID, arg.IssueID)
		if err != nil {
			return nil, err
		}
		*st = *work
		return changes, nil
	})
}

func (o ops) ListVotesByIssue(ctx context.Context, issueID int64) ([]pokerdb.Vote, error) {
	var out []pokerdb.Vote
	err := o.run(func(st *state) ([]changefeed.Change, error) {
		out = st.listVotes(issueID)
		return nil, nil
	})
	return out, err
}

func (o ops) UpsertVote(ctx context.Context, arg pokerdb.UpsertVoteParams) (pokerdb.Vote, error) {
	var out pokerdb.Vote
	err := o.run(func(st *state) ([]changefeed.Change, error) {
		v, changes, err := st.upsertVote(arg, o.clock.Now())
		out = v
		return changes, err
	})
	return out, err
}

func (o ops) DeleteVotesByIssue(ctx context.Context, issueID int64) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		return st.deleteVotes(func(k voteKey) bool { return k.issueID == issueID }), nil
	})
}

func (o ops) DeleteVotesByGame(ctx context.Context, gameID string) error {
	return o.run(func(st *state) ([]changefeed.Change, error) {
		ids := st.gameIssueIDs(gameID)
		return st.deleteVotes(func(k voteKey) bool { return ids[k.issueID] }), nil
	})
}

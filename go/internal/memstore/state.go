package memstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/sqlutil"
)

// Errors mirroring the Postgres constraints of the schema.
var (
	ErrForeignKey   = errors.New("foreign key violation")
	ErrCheck        = errors.New("check constraint violation")
	ErrUniqueVoting = errors.New("unique violation: issues_one_voting_per_game")
)

type voteKey struct {
	issueID int64
	userID  string
}

type state struct {
	nextIssueID int64
	lastCreated time.Time
	issues      map[int64]pokerdb.Issue
	votes       map[voteKey]pokerdb.Vote
}

func newState() *state {
	return &state{
		issues: make(map[int64]pokerdb.Issue),
		votes:  make(map[voteKey]pokerdb.Vote),
	}
}

func (st *state) clone() *state {
	c := &state{
		nextIssueID: st.nextIssueID,
		lastCreated: st.lastCreated,
		issues:      make(map[int64]pokerdb.Issue, len(st.issues)),
		votes:       make(map[voteKey]pokerdb.Vote, len(st.votes)),
	}
	for k, v := range st.issues {
		c.issues[k] = v
	}
	for k, v := range st.votes {
		c.votes[k] = v
	}
	return c
}

// createdAt returns now, nudged forward so creation times are strictly
// increasing like a sequence-backed default.
func (st *state) createdAt(now time.Time) time.Time {
	if !now.After(st.lastCreated) {
		now = st.lastCreated.Add(time.Microsecond)
	}
	st.lastCreated = now
	return now
}

func (st *state) listIssues(gameID string) []pokerdb.Issue {
	var out []pokerdb.Issue
	for _, is := range st.issues {
		if is.GameID == gameID {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (st *state) getIssue(id int64) (pokerdb.Issue, error) {
	is, ok := st.issues[id]
	if !ok {
		return pokerdb.Issue{}, sql.ErrNoRows
	}
	return is, nil
}

func (st *state) insertIssue(is pokerdb.Issue) (pokerdb.Issue, []changefeed.Change, error) {
	if strings.TrimSpace(is.Title) == "" {
		return pokerdb.Issue{}, nil, fmt.Errorf("insert issue: %w", ErrCheck)
	}
	if is.IsVoting && st.votingIssue(is.GameID, 0) != 0 {
		return pokerdb.Issue{}, nil, fmt.Errorf("insert issue: %w", ErrUniqueVoting)
	}
	st.nextIssueID++
	is.ID = st.nextIssueID
	st.issues[is.ID] = is
	return is, []changefeed.Change{issueChange(changefeed.OpInsert, nil, &is)}, nil
}

func (st *state) updateIssue(id int64, mutate func(*pokerdb.Issue)) []changefeed.Change {
	old, ok := st.issues[id]
	if !ok {
		return nil
	}
	updated := old
	mutate(&updated)
	st.issues[id] = updated
	return []changefeed.Change{issueChange(changefeed.OpUpdate, &old, &updated)}
}

func (st *state) deleteIssue(id int64) ([]changefeed.Change, error) {
	old, ok := st.issues[id]
	if !ok {
		return nil, nil
	}
	for k := range st.votes {
		if k.issueID == id {
			return nil, fmt.Errorf("delete issue %d: votes still reference it: %w", id, ErrForeignKey)
		}
	}
	delete(st.issues, id)
	return []changefeed.Change{issueChange(changefeed.OpDelete, &old, nil)}, nil
}

// votingIssue returns a voting issue of the game other than except, or 0.
func (st *state) votingIssue(gameID string, except int64) int64 {
	for id, is := range st.issues {
		if is.GameID == gameID && is.IsVoting && id != except {
			return id
		}
	}
	return 0
}

func (st *state) clearVotingExcept(gameID string, keepID int64) []changefeed.Change {
	var changes []changefeed.Change
	for _, id := range st.sortedIssueIDs() {
		is := st.issues[id]
		if is.GameID == gameID && is.IsVoting && id != keepID {
			changes = append(changes, st.updateIssue(id, func(i *pokerdb.Issue) { i.IsVoting = false })...)
		}
	}
	return changes
}

func (st *state) startVoting(id int64, gameID string) ([]changefeed.Change, error) {
	is, ok := st.issues[id]
	if !ok || is.GameID != gameID {
		return nil, nil
	}
	if st.votingIssue(gameID, id) != 0 {
		return nil, fmt.Errorf("start voting on %d: %w", id, ErrUniqueVoting)
	}
	return st.updateIssue(id, func(i *pokerdb.Issue) {
		i.IsVoting = true
		i.VotesRevealed = false
	}), nil
}

func (st *state) setVotingIssue(gameID string, issueID int64) ([]changefeed.Change, error) {
	is, ok := st.issues[issueID]
	if !ok || is.GameID != gameID {
		return nil, fmt.Errorf("issue %d not found in game %s: %w", issueID, gameID, sql.ErrNoRows)
	}
	changes := st.clearVotingExcept(gameID, issueID)
	changes = append(changes, st.deleteVotes(func(k voteKey) bool { return k.issueID == issueID })...)
	started, err := st.startVoting(issueID, gameID)
	return append(changes, started...), err
}

func (st *state) listVotes(issueID int64) []pokerdb.Vote {
	var out []pokerdb.Vote
	for k, v := range st.votes {
		if k.issueID == issueID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (st *state) upsertVote(arg pokerdb.UpsertVoteParams, now time.Time) (pokerdb.Vote, []changefeed.Change, error) {
	is, ok := st.issues[arg.IssueID]
	if !ok {
		return pokerdb.Vote{}, nil, fmt.Errorf("vote on issue %d: %w", arg.IssueID, ErrForeignKey)
	}
	k := voteKey{issueID: arg.IssueID, userID: arg.UserID}
	v := pokerdb.Vote{IssueID: arg.IssueID, UserID: arg.UserID, VoteValue: arg.VoteValue, UpdatedAt: now}
	old, existed := st.votes[k]
	st.votes[k] = v

	if existed {
		return v, []changefeed.Change{voteChange(changefeed.OpUpdate, is.GameID, &old, &v)}, nil
	}
	return v, []changefeed.Change{voteChange(changefeed.OpInsert, is.GameID, nil, &v)}, nil
}

func (st *state) deleteVotes(match func(voteKey) bool) []changefeed.Change {
	var keys []voteKey
	for k := range st.votes {
		if match(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].issueID == keys[j].issueID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].issueID < keys[j].issueID
	})

	var changes []changefeed.Change
	for _, k := range keys {
		old := st.votes[k]
		delete(st.votes, k)
		changes = append(changes, voteChange(changefeed.OpDelete, st.issues[k.issueID].GameID, &old, nil))
	}
	return changes
}

func (st *state) gameIssueIDs(gameID string) map[int64]bool {
	ids := make(map[int64]bool)
	for id, is := range st.issues {
		if is.GameID == gameID {
			ids[id] = true
		}
	}
	return ids
}

func (st *state) sortedIssueIDs() []int64 {
	ids := make([]int64, 0, len(st.issues))
	for id := range st.issues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type issueRow struct {
	ID            int64     `json:"id"`
	GameID        string    `json:"game_id"`
	Title         string    `json:"title"`
	IsVoting      bool      `json:"is_voting"`
	VotesRevealed bool      `json:"votes_revealed"`
	FinalVote     *string   `json:"final_vote"`
	CreatedAt     time.Time `json:"created_at"`
}

func issueJSON(is *pokerdb.Issue) json.RawMessage {
	if is == nil {
		return nil
	}
	b, _ := json.Marshal(issueRow{
		ID:            is.ID,
		GameID:        is.GameID,
		Title:         is.Title,
		IsVoting:      is.IsVoting,
		VotesRevealed: is.VotesRevealed,
		FinalVote:     sqlutil.FromSqlStringPtr(is.FinalVote),
		CreatedAt:     is.CreatedAt,
	})
	return b
}

func voteJSON(v *pokerdb.Vote) json.RawMessage {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func issueChange(op changefeed.Op, old, updated *pokerdb.Issue) changefeed.Change {
	row := updated
	if row == nil {
		row = old
	}
	return changefeed.Change{
		Table:   changefeed.TableIssues,
		Op:      op,
		GameID:  row.GameID,
		IssueID: row.ID,
		Old:     issueJSON(old),
		New:     issueJSON(updated),
	}
}

func voteChange(op changefeed.Op, gameID string, old, updated *pokerdb.Vote) changefeed.Change {
	row := updated
	if row == nil {
		row = old
	}
	return changefeed.Change{
		Table:   changefeed.TableVotes,
		Op:      op,
		GameID:  gameID,
		IssueID: row.IssueID,
		Old:     voteJSON(old),
		New:     voteJSON(updated),
	}
}

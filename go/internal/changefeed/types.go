package changefeed

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/sqlutil"
)

// Table names a watched relation.
type Table string

const (
	TableIssues Table = "issues"
	TableVotes  Table = "votes"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync tells subscribers that changes may have been missed and the
	// whole scope must be re-read.
	OpResync Op = "RESYNC"
)

// Change is one row-level notification. Subscribers treat it as a trigger to
// re-fetch, never as a delta to apply.
type Change struct {
	ID      int64           `json:"id"`
	Table   Table           `json:"table"`
	Op      Op              `json:"op"`
	GameID  string          `json:"game_id"`
	IssueID int64           `json:"issue_id,omitempty"`
	Old     json.RawMessage `json:"old,omitempty"`
	New     json.RawMessage `json:"new,omitempty"`
	At      time.Time       `json:"at"`
}

// Handler receives changes. It runs on the feed goroutine and must not block.
type Handler func(Change)

func changeFromRow(row pokerdb.RoomChange) Change {
	c := Change{
		ID:      row.ID,
		Table:   Table(row.TableName),
		Op:      Op(row.Op),
		GameID:  row.GameID,
		IssueID: sqlutil.FromSqlInt64(row.IssueID),
		At:      row.CreatedAt,
	}
	if row.OldRow.Valid {
		c.Old = row.OldRow.RawMessage
	}
	if row.NewRow.Valid {
		c.New = row.NewRow.RawMessage
	}
	return c
}

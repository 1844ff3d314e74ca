package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/rs/zerolog/log"
)

// ChangeReader is what the feeds need from the change log.
type ChangeReader interface {
	GetRoomChange(ctx context.Context, id int64) (pokerdb.RoomChange, error)
	ListRoomChangesAfter(ctx context.Context, arg pokerdb.ListRoomChangesAfterParams) ([]pokerdb.RoomChange, error)
	LatestRoomChangeID(ctx context.Context) (int64, error)
}

// Publisher receives decoded changes; *Hub implements it.
type Publisher interface {
	Publish(c Change)
}

// Change-log ids come from a sequence and become visible at commit, so a
// lower id can appear after a higher one was delivered. Skipped ids are kept
// as gaps and re-read until they show up or fall out of the window.
const (
	gapWindow = 1000
	gapTTL    = 2 * time.Minute
)

// relay moves rows from the change log to a Publisher while tracking the
// highest id delivered and the ids still missing below it.
type relay struct {
	reader    ChangeReader
	publisher Publisher
	batchSize int32
	metrics   MetricsCollector
	clock     clockwork.Clock

	mu     sync.Mutex
	lastID int64
	gaps   map[int64]time.Time
}

func newRelay(reader ChangeReader, publisher Publisher, batchSize int32, metrics MetricsCollector, clock clockwork.Clock) *relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &relay{
		reader:    reader,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   metrics,
		clock:     clock,
		gaps:      make(map[int64]time.Time),
	}
}

// seek positions the relay at the current end of the log so only new
// changes are delivered.
func (r *relay) seek(ctx context.Context) error {
	id, err := r.reader.LatestRoomChangeID(ctx)
	if err != nil {
		r.metrics.RecordFeedError("seek")
		return fmt.Errorf("failed to read latest change id: %w", err)
	}
	r.mu.Lock()
	r.lastID = id
	r.gaps = make(map[int64]time.Time)
	r.mu.Unlock()
	return nil
}

func (r *relay) position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID
}

// pending returns the number of open gaps.
func (r *relay) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gaps)
}

// record marks id as delivered and reports whether it was new.
func (r *relay) record(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if id > r.lastID {
		from := r.lastID + 1
		if id-from > gapWindow {
			from = id - gapWindow
		}
		for missing := from; missing < id; missing++ {
			r.gaps[missing] = now
		}
		r.lastID = id
		r.expireLocked(now)
		return true
	}
	if _, ok := r.gaps[id]; ok {
		delete(r.gaps, id)
		log.Debug().Int64("change_id", id).Msg("late change filled gap")
		return true
	}
	return false
}

func (r *relay) expireLocked(now time.Time) {
	for id, seen := range r.gaps {
		if r.lastID-id > gapWindow || now.Sub(seen) > gapTTL {
			delete(r.gaps, id)
		}
	}
}

// cursor is the id to list after: just below the oldest open gap, or the
// high-water mark when there is none.
func (r *relay) cursor() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked(r.clock.Now())
	cur := r.lastID
	for id := range r.gaps {
		if id-1 < cur {
			cur = id - 1
		}
	}
	return cur
}

// deliver fetches one change by id and publishes it unless it was already
// delivered.
func (r *relay) deliver(ctx context.Context, id int64) error {
	row, err := r.reader.GetRoomChange(ctx, id)
	if err != nil {
		r.metrics.RecordFeedError("fetch")
		return fmt.Errorf("failed to fetch change %d: %w", id, err)
	}
	if r.record(row.ID) {
		r.publisher.Publish(changeFromRow(row))
	}
	return nil
}

// drain publishes every undelivered change after the cursor.
func (r *relay) drain(ctx context.Context) (int, error) {
	total := 0
	after := r.cursor()
	for {
		rows, err := r.reader.ListRoomChangesAfter(ctx, pokerdb.ListRoomChangesAfterParams{
			AfterID: after,
			Limit:   r.batchSize,
		})
		if err != nil {
			r.metrics.RecordFeedError("drain")
			return total, fmt.Errorf("failed to list changes: %w", err)
		}
		for _, row := range rows {
			after = row.ID
			if !r.record(row.ID) {
				continue
			}
			r.publisher.Publish(changeFromRow(row))
			total++
		}
		if int32(len(rows)) < r.batchSize {
			if total > 0 {
				log.Debug().Int("changes", total).Int64("last_id", r.position()).Msg("drained change log")
			}
			return total, nil
		}
	}
}

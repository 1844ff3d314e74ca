package changefeed

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) handle(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestHubRoutesByScope(t *testing.T) {
	hub := NewHub(nil)
	game1, game2, issue7 := &recorder{}, &recorder{}, &recorder{}

	hub.SubscribeGame("g1", game1.handle)
	hub.SubscribeGame("g2", game2.handle)
	hub.SubscribeIssue(7, issue7.handle)

	hub.Publish(Change{ID: 1, Table: TableIssues, Op: OpInsert, GameID: "g1", IssueID: 7})
	hub.Publish(Change{ID: 2, Table: TableVotes, Op: OpInsert, GameID: "g1", IssueID: 7})
	hub.Publish(Change{ID: 3, Table: TableVotes, Op: OpInsert, GameID: "g1", IssueID: 8})

	if assert.Len(t, game1.all(), 1) {
		assert.Equal(t, int64(1), game1.all()[0].ID)
	}
	assert.Empty(t, game2.all())
	if assert.Len(t, issue7.all(), 1) {
		assert.Equal(t, int64(2), issue7.all()[0].ID)
	}
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	rec := &recorder{}

	sub := hub.SubscribeIssue(3, rec.handle)
	assert.Equal(t, 1, hub.SubscriberCount())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, hub.SubscriberCount())

	hub.Publish(Change{Table: TableVotes, Op: OpDelete, IssueID: 3})
	assert.Empty(t, rec.all())

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)
}

func TestResyncReachesEverySubscriber(t *testing.T) {
	hub := NewHub(nil)
	game, issue := &recorder{}, &recorder{}
	hub.SubscribeGame("g1", game.handle)
	hub.SubscribeIssue(9, issue.handle)

	hub.Resync("test")

	if assert.Len(t, game.all(), 1) {
		assert.Equal(t, OpResync, game.all()[0].Op)
		assert.Equal(t, "g1", game.all()[0].GameID)
	}
	if assert.Len(t, issue.all(), 1) {
		assert.Equal(t, OpResync, issue.all()[0].Op)
		assert.Equal(t, int64(9), issue.all()[0].IssueID)
	}
}

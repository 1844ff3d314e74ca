package changefeed

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub fans changes out to subscribers scoped by game (issue rows) or by issue
// (vote rows). It is the single delivery point for both the push and the
// polling feeds.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	games  map[string]map[uint64]Handler
	issues map[int64]map[uint64]Handler

	metrics MetricsCollector
}

// Subscription is a registered handler. Unsubscribe is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops further deliveries to the handler.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func NewHub(metrics MetricsCollector) *Hub {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Hub{
		games:   make(map[string]map[uint64]Handler),
		issues:  make(map[int64]map[uint64]Handler),
		metrics: metrics,
	}
}

// SubscribeGame delivers issue changes of gameID.
func (h *Hub) SubscribeGame(gameID string, fn Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[uint64]Handler)
	}
	h.games[gameID][id] = fn

	log.Debug().Str("game_id", gameID).Uint64("subscription", id).Msg("game subscription added")

	return &Subscription{cancel: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.games[gameID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.games, gameID)
			}
		}
		log.Debug().Str("game_id", gameID).Uint64("subscription", id).Msg("game subscription removed")
	}}
}

// SubscribeIssue delivers vote changes of issueID.
func (h *Hub) SubscribeIssue(issueID int64, fn Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.issues[issueID] == nil {
		h.issues[issueID] = make(map[uint64]Handler)
	}
	h.issues[issueID][id] = fn

	log.Debug().Int64("issue_id", issueID).Uint64("subscription", id).Msg("issue subscription added")

	return &Subscription{cancel: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.issues[issueID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.issues, issueID)
			}
		}
		log.Debug().Int64("issue_id", issueID).Uint64("subscription", id).Msg("issue subscription removed")
	}}
}

// Publish routes a change to the subscribers of its scope.
func (h *Hub) Publish(c Change) {
	h.metrics.RecordChange(string(c.Table), string(c.Op))

	h.mu.RLock()
	var targets []Handler
	switch c.Table {
	case TableIssues:
		for _, fn := range h.games[c.GameID] {
			targets = append(targets, fn)
		}
	case TableVotes:
		for _, fn := range h.issues[c.IssueID] {
			targets = append(targets, fn)
		}
	default:
		log.Warn().Str("table", string(c.Table)).Msg("change for unknown table ignored")
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
}

// Resync tells every subscriber to re-read its scope.
func (h *Hub) Resync(reason string) {
	h.metrics.RecordResync(reason)

	h.mu.RLock()
	var targets []func()
	for gameID, subs := range h.games {
		c := Change{Table: TableIssues, Op: OpResync, GameID: gameID}
		for _, fn := range subs {
			fn := fn
			targets = append(targets, func() { fn(c) })
		}
	}
	for issueID, subs := range h.issues {
		c := Change{Table: TableVotes, Op: OpResync, IssueID: issueID}
		for _, fn := range subs {
			fn := fn
			targets = append(targets, func() { fn(c) })
		}
	}
	h.mu.RUnlock()

	log.Info().Str("reason", reason).Int("subscribers", len(targets)).Msg("change feed resync")
	for _, deliver := range targets {
		deliver()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.games {
		n += len(subs)
	}
	for _, subs := range h.issues {
		n += len(subs)
	}
	return n
}

// Package session keeps a local, reconciled view of a planning poker room
// and turns user intents into store mutations.
//
// Every change notification, periodic resync and completed intent funnels
// into the same Refresh routine, which re-reads the room and replaces the
// view wholesale. Notification payloads are never applied directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/rs/zerolog/log"
)

// IssueClient is what the controller needs from the issues app.
type IssueClient interface {
	List(ctx context.Context, gameID string) ([]models.Issue, error)
	Create(ctx context.Context, gameID, title string) (*models.Issue, error)
	DeleteWithVotes(ctx context.Context, id int64) error
	ClearGame(ctx context.Context, gameID string) error
	SetActiveIssue(ctx context.Context, gameID string, issueID int64) error
	ClearOtherActive(ctx context.Context, gameID string, keepID int64) error
	RevealVotes(ctx context.Context, id int64) error
	ResetVoting(ctx context.Context, id int64) error
	SetFinalVote(ctx context.Context, id int64, value string) error
	Subscribe(gameID string, onChange changefeed.Handler) *changefeed.Subscription
}

// VoteClient is what the controller needs from the votes app.
type VoteClient interface {
	ListForIssue(ctx context.Context, issueID int64) ([]models.Vote, error)
	Cast(ctx context.Context, issueID int64, participantID, value string) (*models.Vote, error)
	Subscribe(issueID int64, onChange changefeed.Handler) *changefeed.Subscription
}

// MetricsCollector records reconciliation outcomes.
type MetricsCollector interface {
	RecordRefresh(success bool)
	RecordAnomaly(kind string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRefresh(bool)   {}
func (noopMetrics) RecordAnomaly(string) {}

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message about something that happened outside
// the normal flow of an intent, e.g. a failed refresh.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
	At      time.Time
}

// state is the last known good room state plus connection bookkeeping.
type state struct {
	gameID    string
	self      models.Participant
	issues    []models.Issue
	active    *models.Issue
	votes     []models.Vote
	roster    []models.Participant
	status    Status
	lastErr   error
	updatedAt time.Time
}

// Controller owns the local view of one room.
type Controller struct {
	cfg      Config
	issues   IssueClient
	votes    VoteClient
	presence Presence
	metrics  MetricsCollector
	clock    clockwork.Clock

	// opMu serializes intents and refreshes so each mutation observes the
	// state left by the previous one.
	opMu sync.Mutex
	// Guarded by opMu.
	issueSub     *changefeed.Subscription
	voteSub      *changefeed.Subscription
	voteSubIssue int64
	roster       RosterHandle
	failures     int
	healKeep     int64
	resetIssue   int64
	resetVotes   map[string]time.Time
	closed       bool

	mu    sync.RWMutex
	state state

	pubMu   sync.Mutex
	updates chan View
	notices chan Notice
	wakeCh  chan struct{}
}

// NewController builds a controller for cfg.GameID acting as self.
func NewController(cfg Config, self models.Participant, issues IssueClient, votes VoteClient, presence Presence, metrics MetricsCollector) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DisconnectAfter <= 0 {
		cfg.DisconnectAfter = 3
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Controller{
		cfg:      cfg,
		issues:   issues,
		votes:    votes,
		presence: presence,
		metrics:  metrics,
		clock:    cfg.Clock,
		state: state{
			gameID: cfg.GameID,
			self:   self,
			status: StatusConnecting,
		},
		updates: make(chan View, 1),
		notices: make(chan Notice, 16),
		wakeCh:  make(chan struct{}, 1),
	}
}

// Start subscribes to room changes, joins presence and loads the room. A
// failed initial load is returned but leaves the controller usable; Run
// keeps trying to reconcile.
func (c *Controller) Start(ctx context.Context) error {
	if c.cfg.GameID == "" {
		return models.NewValidationError("game_id", "must not be empty")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.issueSub = c.issues.Subscribe(c.cfg.GameID, c.onChange)

	if c.presence != nil {
		handle, err := c.presence.Join(ctx, c.cfg.GameID, c.self())
		if err != nil {
			log.Warn().Err(err).Str("game_id", c.cfg.GameID).Msg("presence unavailable, continuing without roster")
			c.notify(NoticeWarning, "presence unavailable", err)
		} else {
			c.roster = handle
		}
	}

	return c.refreshLocked(ctx)
}

// Run processes change notifications, periodic resyncs and roster updates
// until ctx is done. It then leaves presence and drops subscriptions.
func (c *Controller) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.cfg.ResyncInterval > 0 {
		t := c.clock.NewTicker(c.cfg.ResyncInterval)
		defer t.Stop()
		tick = t.Chan()
	}

	c.opMu.Lock()
	var rosterCh <-chan []models.Participant
	if c.roster != nil {
		rosterCh = c.roster.Updates()
	}
	c.opMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.Close(closeCtx)
			cancel()
			return ctx.Err()

		case <-c.wakeCh:
			_ = c.Refresh(ctx)

		case <-tick:
			_ = c.Refresh(ctx)

		case roster, ok := <-rosterCh:
			if !ok {
				rosterCh = nil
				log.Warn().Str("game_id", c.cfg.GameID).Msg("presence stream closed")
				c.notify(NoticeWarning, "lost connection to presence", nil)
				continue
			}
			c.mu.Lock()
			c.state.roster = roster
			c.mu.Unlock()
			c.publish()
		}
	}
}

// Close leaves presence and drops subscriptions. Safe to call more than once.
func (c *Controller) Close(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	c.issueSub.Unsubscribe()
	c.voteSub.Unsubscribe()
	c.voteSub, c.voteSubIssue = nil, 0
	if c.roster != nil {
		if err := c.roster.Leave(ctx); err != nil {
			log.Warn().Err(err).Str("game_id", c.cfg.GameID).Msg("failed to leave presence")
		}
	}
	log.Info().Str("game_id", c.cfg.GameID).Msg("session closed")
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return buildView(&c.state)
}

// Updates yields a fresh View after every change. Slow readers only see
// the latest one.
func (c *Controller) Updates() <-chan View {
	return c.updates
}

// Notices yields user-facing messages. They are dropped when nobody reads.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// Refresh re-reads the room and replaces the view. On failure the last
// known good view is kept and marked stale.
func (c *Controller) Refresh(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Controller) refreshLocked(ctx context.Context) error {
	if c.closed {
		return nil
	}

	list, err := c.issues.List(ctx, c.cfg.GameID)
	if err != nil {
		return c.refreshFailed(err)
	}

	active := c.deriveActive(list)
	c.followVotes(active)

	var votes []models.Vote
	if active != nil {
		votes, err = c.votes.ListForIssue(ctx, active.ID)
		if err != nil {
			return c.refreshFailed(err)
		}
		c.checkReset(*active, votes)
	}

	c.mu.Lock()
	c.state.issues = list
	c.state.active = active
	c.state.votes = votes
	c.state.status = StatusLive
	c.state.lastErr = nil
	c.state.updatedAt = c.clock.Now()
	c.mu.Unlock()

	if c.failures > 0 {
		log.Info().Str("game_id", c.cfg.GameID).Int("failures", c.failures).Msg("session reconnected")
		c.notify(NoticeInfo, "reconnected", nil)
	}
	c.failures = 0
	c.metrics.RecordRefresh(true)
	c.publish()
	return nil
}

func (c *Controller) refreshFailed(err error) error {
	c.failures++
	status := StatusStale
	if c.failures >= c.cfg.DisconnectAfter {
		status = StatusDisconnected
	}

	c.mu.Lock()
	c.state.status = status
	c.state.lastErr = err
	c.mu.Unlock()

	log.Error().Err(err).
		Str("game_id", c.cfg.GameID).
		Int("failures", c.failures).
		Str("status", string(status)).
		Msg("failed to refresh session")
	c.metrics.RecordRefresh(false)
	c.notify(NoticeError, "could not refresh the room", err)
	c.publish()
	return fmt.Errorf("refresh: %w", err)
}

// deriveActive picks the issue being voted on. More than one is an anomaly:
// the newest wins and the rest are cleared on the next mutation.
func (c *Controller) deriveActive(list []models.Issue) *models.Issue {
	var voting []models.Issue
	for _, is := range list {
		if is.IsVoting {
			voting = append(voting, is)
		}
	}
	c.healKeep = 0
	if len(voting) == 0 {
		return nil
	}

	newest := voting[0]
	for _, is := range voting[1:] {
		if is.NewerThan(newest) {
			newest = is
		}
	}
	if len(voting) > 1 {
		ids := make([]string, 0, len(voting))
		for _, is := range voting {
			ids = append(ids, strconv.FormatInt(is.ID, 10))
		}
		c.anomaly(models.AnomalyMultipleActive,
			fmt.Sprintf("issues %s are all voting, keeping %d", strings.Join(ids, ","), newest.ID))
		c.healKeep = newest.ID
	}
	return &newest
}

// checkReset flags votes that survived a reset this controller performed.
// A survivor carries the same store timestamp it had before the reset; a
// vote cast afterwards has a newer one. Only store timestamps are compared,
// so client clock skew does not matter.
func (c *Controller) checkReset(active models.Issue, votes []models.Vote) {
	if c.resetIssue == 0 {
		return
	}
	if active.ID == c.resetIssue {
		for _, v := range votes {
			if stamp, ok := c.resetVotes[v.ParticipantID]; ok && v.UpdatedAt.Equal(stamp) {
				c.anomaly(models.AnomalyVotesAfterReset,
					fmt.Sprintf("vote by %s on issue %d survived reset", v.ParticipantID, active.ID))
				break
			}
		}
	}
	c.resetIssue, c.resetVotes = 0, nil
}

func (c *Controller) anomaly(kind, detail string) {
	a := &models.ConsistencyAnomaly{GameID: c.cfg.GameID, Kind: kind, Detail: detail}
	log.Warn().Err(a).Str("game_id", c.cfg.GameID).Str("kind", kind).Msg("consistency anomaly")
	c.metrics.RecordAnomaly(kind)
}

// followVotes moves the vote subscription to the active issue.
func (c *Controller) followVotes(active *models.Issue) {
	want := int64(0)
	if active != nil {
		want = active.ID
	}
	if want == c.voteSubIssue && (want == 0 || c.voteSub != nil) {
		return
	}
	c.voteSub.Unsubscribe()
	c.voteSub, c.voteSubIssue = nil, want
	if want != 0 {
		c.voteSub = c.votes.Subscribe(want, c.onChange)
	}
}

func (c *Controller) onChange(change changefeed.Change) {
	log.Debug().
		Str("game_id", c.cfg.GameID).
		Str("table", string(change.Table)).
		Str("op", string(change.Op)).
		Msg("room changed")
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Controller) self() models.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.self
}

func (c *Controller) current() (active *models.Issue, votes []models.Vote, issues []models.Issue) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.active != nil {
		a := *c.state.active
		active = &a
	}
	return active, append([]models.Vote(nil), c.state.votes...), append([]models.Issue(nil), c.state.issues...)
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	v := c.View()
	select {
	case c.updates <- v:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v:
	default:
	}
}

func (c *Controller) notify(level NoticeLevel, msg string, err error) {
	n := Notice{Level: level, Message: msg, Err: err, At: c.clock.Now()}
	select {
	case c.notices <- n:
	default:
		log.Debug().Str("message", msg).Msg("notice dropped")
	}
}

// mutate runs an intent: it heals a known anomaly, applies fn and then
// reconciles. A failed reconcile does not fail an intent that was applied.
func (c *Controller) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.closed {
		return errors.New("session is closed")
	}
	c.heal(ctx)

	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("game_id", c.cfg.GameID).Str("op", op).Msg("intent failed")
		return err
	}
	_ = c.refreshLocked(ctx)
	return nil
}

func (c *Controller) heal(ctx context.Context) {
	if c.healKeep == 0 {
		return
	}
	if err := c.issues.ClearOtherActive(ctx, c.cfg.GameID, c.healKeep); err != nil {
		log.Error().Err(err).Str("game_id", c.cfg.GameID).Int64("keep_id", c.healKeep).Msg("failed to clear extra active issues")
		return
	}
	log.Info().Str("game_id", c.cfg.GameID).Int64("keep_id", c.healKeep).Msg("cleared extra active issues")
	c.healKeep = 0
}

func (c *Controller) canControl() error {
	if c.self().IsSpectator && !c.cfg.Policy.SpectatorsCanControl {
		return models.ErrNotPermitted
	}
	return nil
}

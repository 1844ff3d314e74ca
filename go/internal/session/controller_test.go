package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/changefeed"
	"github.com/mcdev12/planningpoker/go/internal/issues"
	"github.com/mcdev12/planningpoker/go/internal/memstore"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/pokerdb"
	"github.com/mcdev12/planningpoker/go/internal/presence"
	"github.com/mcdev12/planningpoker/go/internal/retry"
	"github.com/mcdev12/planningpoker/go/internal/session"
	"github.com/mcdev12/planningpoker/go/internal/votes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gameID  = "g1"
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	alice = models.Participant{ID: "user_alice", Name: "Alice"}
	bob   = models.Participant{ID: "user_bob", Name: "Bob"}
	carol = models.Participant{ID: "user_carol", Name: "Carol", IsSpectator: true}
)

type fakeMetrics struct {
	mu        sync.Mutex
	ok        int
	failed    int
	anomalies []string
}

func (m *fakeMetrics) RecordRefresh(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.ok++
	} else {
		m.failed++
	}
}

func (m *fakeMetrics) RecordAnomaly(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies = append(m.anomalies, kind)
}

func (m *fakeMetrics) Anomalies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.anomalies...)
}

type room struct {
	clock     *clockwork.FakeClock
	store     *memstore.Store
	hub       *changefeed.Hub
	issues    *issues.App
	votes     *votes.App
	transport *presence.MemoryTransport
}

func newRoom() *room {
	clock := clockwork.NewFakeClock()
	hub := changefeed.NewHub(nil)
	store := memstore.New(hub, clock)
	cfg := retry.Config{MaxRetries: 1}
	return &room{
		clock:     clock,
		store:     store,
		hub:       hub,
		issues:    issues.NewApp(issues.NewRepository(store, issues.ActivateProcedure), hub, clock, cfg),
		votes:     votes.NewApp(votes.NewRepository(store), hub, clock, cfg),
		transport: presence.NewMemoryTransport(),
	}
}

func (r *room) controller(self models.Participant, policy session.Policy) (*session.Controller, *fakeMetrics) {
	cfg := session.Config{
		GameID:          gameID,
		Policy:          policy,
		DisconnectAfter: 2,
		Clock:           r.clock,
	}
	m := &fakeMetrics{}
	tracker := presence.NewTracker(r.transport, nil)
	return session.NewController(cfg, self, r.issues, r.votes, session.FromTracker(tracker), m), m
}

func (r *room) join(t *testing.T, self models.Participant) *session.Controller {
	t.Helper()
	c, _ := r.controller(self, session.DefaultPolicy())
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func titles(v session.View) []string {
	out := make([]string, 0, len(v.Issues))
	for _, is := range v.Issues {
		out = append(out, is.Title)
	}
	return out
}

func TestCreateIssueAppendsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	assert.Equal(t, session.StatusLive, c.View().Status)
	assert.Empty(t, c.View().Issues)

	_, err := c.CreateIssue(ctx, "Signup form")
	require.NoError(t, err)
	is, err := c.CreateIssue(ctx, "  Login page ")
	require.NoError(t, err)

	assert.Equal(t, "Login page", is.Title)
	assert.False(t, is.IsVoting)
	assert.False(t, is.VotesRevealed)
	assert.Nil(t, is.FinalVote)

	v := c.View()
	assert.Equal(t, []string{"Signup form", "Login page"}, titles(v))
	assert.Nil(t, v.Active)
	assert.Equal(t, models.PhaseIdle, v.Phase)
}

func TestCreateIssueRejectsBlankTitle(t *testing.T) {
	r := newRoom()
	c := r.join(t, alice)

	_, err := c.CreateIssue(context.Background(), "   ")
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, c.View().Issues)
}

func TestActivateIssueSwitchesRoundAndDiscardsOldVotes(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	i1, err := c.CreateIssue(ctx, "one")
	require.NoError(t, err)
	i2, err := c.CreateIssue(ctx, "two")
	require.NoError(t, err)

	require.NoError(t, c.ActivateIssue(ctx, i1.ID))
	require.NoError(t, c.CastVote(ctx, "5"))
	require.NoError(t, c.ActivateIssue(ctx, i2.ID))

	v := c.View()
	require.NotNil(t, v.Active)
	assert.Equal(t, i2.ID, v.Active.ID)
	assert.Equal(t, models.PhaseVotingHidden, v.Phase)
	assert.Empty(t, v.Votes)

	require.NoError(t, c.ActivateIssue(ctx, i1.ID))
	v = c.View()
	assert.Equal(t, i1.ID, v.Active.ID)
	assert.Empty(t, v.Votes, "prior round votes are discarded")
	assert.Empty(t, v.MyVote)

	list, err := r.issues.List(ctx, gameID)
	require.NoError(t, err)
	voting := 0
	for _, is := range list {
		if is.IsVoting {
			voting++
		}
	}
	assert.Equal(t, 1, voting)
}

func TestActivateIssuePreconditions(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	assert.ErrorIs(t, c.ActivateIssue(ctx, 42), models.ErrIssueNotFound)

	is, err := c.CreateIssue(ctx, "done")
	require.NoError(t, err)
	require.NoError(t, c.ActivateIssue(ctx, is.ID))
	require.NoError(t, c.CastVote(ctx, "3"))
	require.NoError(t, c.RevealVotes(ctx))
	require.NoError(t, c.SetFinalVote(ctx, "3"))

	assert.ErrorIs(t, c.ActivateIssue(ctx, is.ID), models.ErrIssueFinalized)
}

func TestRevealShowsVotesAndStats(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	a := r.join(t, alice)
	b := r.join(t, bob)

	is, err := a.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, a.ActivateIssue(ctx, is.ID))
	require.NoError(t, b.Refresh(ctx))

	require.NoError(t, a.CastVote(ctx, "5"))
	require.NoError(t, b.CastVote(ctx, "8"))
	require.NoError(t, a.Refresh(ctx))

	v := a.View()
	require.Len(t, v.Votes, 2)
	assert.True(t, v.HasVoted(bob.ID))
	assert.Equal(t, "5", v.MyVote)
	assert.Nil(t, v.Stats)
	for _, e := range v.Votes {
		if e.ParticipantID == bob.ID {
			assert.True(t, e.Hidden)
			assert.Empty(t, e.Value)
		}
	}

	require.NoError(t, a.RevealVotes(ctx))
	v = a.View()
	assert.Equal(t, models.PhaseVotesRevealed, v.Phase)
	require.NotNil(t, v.Stats)
	assert.InDelta(t, 6.5, v.Stats.Average, 1e-9)
	assert.False(t, v.Stats.Consensus)
	for _, e := range v.Votes {
		assert.False(t, e.Hidden)
		assert.NotEmpty(t, e.Value)
	}

	require.NoError(t, b.Refresh(ctx))
	assert.ErrorIs(t, b.CastVote(ctx, "13"), models.ErrVotesRevealed)
}

func TestRevealExcludesNonNumericFromStats(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	a := r.join(t, alice)
	b := r.join(t, bob)
	d := r.join(t, models.Participant{ID: "user_dave", Name: "Dave"})

	is, err := a.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, a.ActivateIssue(ctx, is.ID))
	for _, c := range []*session.Controller{b, d} {
		require.NoError(t, c.Refresh(ctx))
	}
	require.NoError(t, a.CastVote(ctx, "3"))
	require.NoError(t, b.CastVote(ctx, "3"))
	require.NoError(t, d.CastVote(ctx, models.CardUnknown))
	require.NoError(t, a.RevealVotes(ctx))

	s := a.View().Stats
	require.NotNil(t, s)
	assert.Equal(t, 3, s.TotalVotes)
	assert.Equal(t, 2, s.NumericVotes)
	assert.InDelta(t, 3.0, s.Average, 1e-9)
	assert.True(t, s.Consensus)
}

func TestRevealIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	is, err := c.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, c.ActivateIssue(ctx, is.ID))
	require.NoError(t, c.CastVote(ctx, "2"))

	require.NoError(t, c.RevealVotes(ctx))
	first := c.View()
	require.NoError(t, c.RevealVotes(ctx))
	second := c.View()

	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, first.Votes, second.Votes)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestRevealRequiresMinimumVotes(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	is, err := c.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, c.ActivateIssue(ctx, is.ID))
	assert.ErrorIs(t, c.RevealVotes(ctx), models.ErrNotEnoughVotes)

	lenient, _ := r.controller(bob, session.Policy{MinVotesToReveal: 0})
	require.NoError(t, lenient.Start(ctx))
	defer lenient.Close(ctx)
	require.NoError(t, lenient.RevealVotes(ctx))
	assert.Equal(t, models.PhaseVotesRevealed, lenient.View().Phase)
}

func TestResetVotingClearsVotesAndHides(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	is, err := c.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, c.ActivateIssue(ctx, is.ID))
	require.NoError(t, c.CastVote(ctx, "8"))
	require.NoError(t, c.RevealVotes(ctx))

	require.NoError(t, c.ResetVoting(ctx))

	v := c.View()
	require.NotNil(t, v.Active)
	assert.Equal(t, is.ID, v.Active.ID)
	assert.False(t, v.Active.VotesRevealed)
	assert.Equal(t, models.PhaseVotingHidden, v.Phase)
	assert.Empty(t, v.Votes)
	assert.Nil(t, v.Stats)

	remaining, err := r.votes.ListForIssue(ctx, is.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	require.NoError(t, c.CastVote(ctx, "5"), "a new round accepts votes")
}

func TestSpectatorRules(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	a := r.join(t, alice)
	s := r.join(t, carol)

	is, err := a.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, a.ActivateIssue(ctx, is.ID))
	require.NoError(t, a.CastVote(ctx, "5"))
	require.NoError(t, s.Refresh(ctx))

	assert.ErrorIs(t, s.CastVote(ctx, "3"), models.ErrSpectator)
	assert.ErrorIs(t, s.RevealVotes(ctx), models.ErrNotPermitted)
	assert.ErrorIs(t, s.ResetVoting(ctx), models.ErrNotPermitted)
	assert.ErrorIs(t, s.ClearSession(ctx), models.ErrNotPermitted)

	_, err = s.CreateIssue(ctx, "spectators may add issues")
	assert.NoError(t, err)

	host, _ := r.controller(models.Participant{ID: "user_host", Name: "Host", IsSpectator: true},
		session.Policy{MinVotesToReveal: 1, SpectatorsCanControl: true})
	require.NoError(t, host.Start(ctx))
	defer host.Close(ctx)
	assert.ErrorIs(t, host.CastVote(ctx, "3"), models.ErrSpectator)
	assert.NoError(t, host.RevealVotes(ctx))
}

func TestCastVoteWithoutActiveIssue(t *testing.T) {
	r := newRoom()
	c := r.join(t, alice)
	assert.ErrorIs(t, c.CastVote(context.Background(), "5"), models.ErrNoActiveIssue)
	assert.ErrorIs(t, c.RevealVotes(context.Background()), models.ErrNoActiveIssue)
	assert.ErrorIs(t, c.SetFinalVote(context.Background(), "5"), models.ErrNoActiveIssue)
}

func TestSetFinalVoteEndsRound(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	is, err := c.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, c.ActivateIssue(ctx, is.ID))
	require.NoError(t, c.CastVote(ctx, "8"))

	assert.ErrorIs(t, c.SetFinalVote(ctx, "8"), models.ErrVotesHidden)
	require.NoError(t, c.RevealVotes(ctx))
	assert.True(t, models.IsValidation(c.SetFinalVote(ctx, "  ")))
	require.NoError(t, c.SetFinalVote(ctx, " 8 "))

	v := c.View()
	assert.Nil(t, v.Active)
	assert.Equal(t, models.PhaseIdle, v.Phase)
	require.Len(t, v.Issues, 1)
	assert.Equal(t, models.PhaseFinalized, v.Issues[0].Phase())
	assert.Equal(t, []session.SummaryEntry{{IssueID: is.ID, Title: "story", FinalVote: "8"}}, v.Summary())
}

func TestDeleteIssueRemovesVotes(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	a := r.join(t, alice)
	b := r.join(t, bob)

	is, err := a.CreateIssue(ctx, "story")
	require.NoError(t, err)
	require.NoError(t, a.ActivateIssue(ctx, is.ID))
	require.NoError(t, b.Refresh(ctx))
	require.NoError(t, a.CastVote(ctx, "5"))
	require.NoError(t, b.CastVote(ctx, "8"))
	require.NoError(t, a.Refresh(ctx))

	require.NoError(t, a.DeleteIssue(ctx, is.ID))

	v := a.View()
	assert.Empty(t, v.Issues)
	assert.Nil(t, v.Active)
	rows, err := r.store.ListVotesByIssue(ctx, is.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.ErrorIs(t, a.DeleteIssue(ctx, is.ID), models.ErrIssueNotFound)
}

func TestClearSessionRemovesEverything(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	for _, title := range []string{"a", "b"} {
		_, err := c.CreateIssue(ctx, title)
		require.NoError(t, err)
	}
	require.NoError(t, c.ActivateIssue(ctx, c.View().Issues[0].ID))
	require.NoError(t, c.CastVote(ctx, "1"))

	require.NoError(t, c.ClearSession(ctx))
	assert.Empty(t, c.View().Issues)
	assert.Nil(t, c.View().Active)
}

func TestMultipleActiveIssuesAreHealed(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	older := r.store.Seed(pokerdb.Issue{GameID: gameID, Title: "old", IsVoting: true})
	newer := r.store.Seed(pokerdb.Issue{GameID: gameID, Title: "new", IsVoting: true})

	c, m := r.controller(alice, session.DefaultPolicy())
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	v := c.View()
	require.NotNil(t, v.Active)
	assert.Equal(t, newer.ID, v.Active.ID)
	assert.Equal(t, []string{models.AnomalyMultipleActive}, m.Anomalies())

	_, err := c.CreateIssue(ctx, "next")
	require.NoError(t, err)

	got, err := r.store.GetIssue(ctx, older.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVoting)
	got, err = r.store.GetIssue(ctx, newer.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVoting)
	assert.Equal(t, newer.ID, c.View().Active.ID)
}

// lossyReset acknowledges resets without touching the store.
type lossyReset struct {
	*issues.App
}

func (lossyReset) ResetVoting(ctx context.Context, id int64) error { return nil }

func TestVotesSurvivingResetAreReported(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	is, err := r.issues.Create(ctx, gameID, "story")
	require.NoError(t, err)
	require.NoError(t, r.issues.SetActiveIssue(ctx, gameID, is.ID))

	m := &fakeMetrics{}
	c := session.NewController(session.Config{GameID: gameID, Policy: session.DefaultPolicy(), Clock: r.clock},
		alice, lossyReset{r.issues}, r.votes, nil, m)
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	require.NoError(t, c.CastVote(ctx, "5"))
	require.NoError(t, c.ResetVoting(ctx))
	assert.Equal(t, []string{models.AnomalyVotesAfterReset}, m.Anomalies())
	assert.True(t, c.View().HasVoted(alice.ID))
}

func TestVotesCastAfterResetAreNotReported(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	is, err := r.issues.Create(ctx, gameID, "story")
	require.NoError(t, err)
	require.NoError(t, r.issues.SetActiveIssue(ctx, gameID, is.ID))

	// the store clock lags the session clock by a minute
	sessionClock := clockwork.NewFakeClockAt(r.clock.Now().Add(time.Minute))
	m := &fakeMetrics{}
	c := session.NewController(session.Config{GameID: gameID, Policy: session.DefaultPolicy(), Clock: sessionClock},
		alice, r.issues, r.votes, nil, m)
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	require.NoError(t, c.CastVote(ctx, "5"))
	require.NoError(t, c.ResetVoting(ctx))
	assert.Empty(t, m.Anomalies(), "a clean reset leaves no votes")

	require.NoError(t, c.CastVote(ctx, "3"))
	var once sync.Once
	sub := r.hub.SubscribeGame(gameID, func(change changefeed.Change) {
		if change.Op != changefeed.OpUpdate {
			return
		}
		once.Do(func() {
			_, err := r.votes.Cast(ctx, is.ID, bob.ID, "8")
			assert.NoError(t, err)
		})
	})
	defer sub.Unsubscribe()

	require.NoError(t, c.ResetVoting(ctx))
	assert.Empty(t, m.Anomalies())
	v := c.View()
	assert.True(t, v.HasVoted(bob.ID))
	assert.False(t, v.HasVoted(alice.ID))
}

func TestRefreshFailureKeepsLastKnownGoodView(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c, m := r.controller(alice, session.DefaultPolicy())
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	_, err := c.CreateIssue(ctx, "story")
	require.NoError(t, err)

	boom := errors.New("connection refused")
	r.store.FailNext(2, boom)
	err = c.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, models.IsRepository(err))

	v := c.View()
	assert.Equal(t, session.StatusStale, v.Status)
	assert.Equal(t, []string{"story"}, titles(v))
	assert.NotEmpty(t, v.LastError)

	select {
	case n := <-c.Notices():
		assert.Equal(t, session.NoticeError, n.Level)
		assert.ErrorIs(t, n.Err, boom)
	default:
		t.Fatal("expected a notice")
	}

	r.store.FailNext(2, boom)
	require.Error(t, c.Refresh(ctx))
	assert.Equal(t, session.StatusDisconnected, c.View().Status)

	require.NoError(t, c.Refresh(ctx))
	v = c.View()
	assert.Equal(t, session.StatusLive, v.Status)
	assert.Empty(t, v.LastError)
	assert.Equal(t, 2, m.failed)
}

func TestFailedIntentReturnsRepositoryError(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	boom := errors.New("timeout")
	r.store.FailNext(1, boom)
	_, err := c.CreateIssue(ctx, "story")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, session.StatusLive, c.View().Status)
}

func TestRunReconcilesRemoteChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRoom()
	a := r.join(t, alice)
	b := r.join(t, bob)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	is, err := b.CreateIssue(ctx, "remote")
	require.NoError(t, err)
	require.NoError(t, b.ActivateIssue(ctx, is.ID))

	require.Eventually(t, func() bool {
		v := a.View()
		return v.Active != nil && v.Active.ID == is.ID
	}, timeout, tick)

	// the vote subscription now follows the active issue
	require.NoError(t, b.CastVote(ctx, "13"))
	require.Eventually(t, func() bool { return a.View().HasVoted(bob.ID) }, timeout, tick)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(timeout):
		t.Fatal("Run did not return")
	}
}

func TestRosterFollowsPresence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRoom()
	a := r.join(t, alice)
	b := r.join(t, bob)
	go func() { _ = a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(a.View().Roster) == 2 }, timeout, tick)

	renamed := bob
	renamed.Name = "Bobby"
	renamed.IsSpectator = true
	require.NoError(t, b.UpdateProfile(ctx, renamed))
	assert.Equal(t, renamed, b.View().Self)

	require.Eventually(t, func() bool {
		for _, p := range a.View().Roster {
			if p.ID == bob.ID {
				return p.Name == "Bobby" && p.IsSpectator
			}
		}
		return false
	}, timeout, tick)

	b.Close(ctx)
	require.Eventually(t, func() bool { return len(a.View().Roster) == 1 }, timeout, tick)
	assert.Equal(t, alice.ID, a.View().Roster[0].ID)
}

func TestUpdateProfileValidation(t *testing.T) {
	r := newRoom()
	c := r.join(t, alice)

	other := alice
	other.ID = "user_other"
	assert.True(t, models.IsValidation(c.UpdateProfile(context.Background(), other)))

	blank := alice
	blank.Name = " "
	assert.True(t, models.IsValidation(c.UpdateProfile(context.Background(), blank)))
}

func TestUpdatesDeliverLatestView(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c := r.join(t, alice)

	for _, title := range []string{"a", "b", "c"} {
		_, err := c.CreateIssue(ctx, title)
		require.NoError(t, err)
	}

	select {
	case v := <-c.Updates():
		assert.Equal(t, []string{"a", "b", "c"}, titles(v))
	default:
		t.Fatal("expected an update")
	}
}

func TestStartRequiresGameID(t *testing.T) {
	r := newRoom()
	c := session.NewController(session.Config{}, alice, r.issues, r.votes, nil, nil)
	assert.True(t, models.IsValidation(c.Start(context.Background())))
}

func TestVoteSubscriptionFollowsActiveIssue(t *testing.T) {
	ctx := context.Background()
	r := newRoom()
	c, _ := r.controller(alice, session.DefaultPolicy())
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 1, r.hub.SubscriberCount(), "issue feed only")

	i1, err := c.CreateIssue(ctx, "one")
	require.NoError(t, err)
	i2, err := c.CreateIssue(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, 1, r.hub.SubscriberCount())

	require.NoError(t, c.ActivateIssue(ctx, i1.ID))
	assert.Equal(t, 2, r.hub.SubscriberCount())

	// switching replaces the vote subscription instead of adding one
	require.NoError(t, c.ActivateIssue(ctx, i2.ID))
	assert.Equal(t, 2, r.hub.SubscriberCount())

	require.NoError(t, c.CastVote(ctx, "5"))
	require.NoError(t, c.DeleteIssue(ctx, i2.ID))
	assert.Nil(t, c.View().Active)
	assert.Equal(t, 1, r.hub.SubscriberCount())

	c.Close(ctx)
	assert.Zero(t, r.hub.SubscriberCount())
	c.Close(ctx)
	assert.Zero(t, r.hub.SubscriberCount())
}

package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"soccer-game/internal/game"
	"soccer-game/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const persistTimeout = 10 * time.Second

// pendingEntry is shared by both participants' keys in the coordinator table.
type pendingEntry struct {
	match   PendingMatch
	attempt int
}

// hooks are the outbound side effects shared by the coordinator and the
// matchmaker. They are set before Start and read-only afterwards.
type hooks struct {
	notifier Notifier
	journal  Journal
	recorder ResultRecorder
	log      *zap.Logger
	now      func() time.Time
}

func (h *hooks) notify(participantID string, ev Event) {
	h.notifier.Notify(participantID, ev)
}

func (h *hooks) record(ev models.MatchEvent) {
	if h.journal == nil {
		return
	}
	ev.ID = uuid.NewString()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = h.now()
	}
	h.journal.Record(ev)
}

// Coordinator tracks pending matches until both sides agree, then resolves
// them exactly once.
type Coordinator struct {
	mu       sync.Mutex
	table    map[string]*pendingEntry
	rosters  RosterService
	accounts AccountService
	resolver *game.Resolver
	hooks    *hooks
}

func newCoordinator(rosters RosterService, accounts AccountService, resolver *game.Resolver, h *hooks) *Coordinator {
	return &Coordinator{
		table:    make(map[string]*pendingEntry),
		rosters:  rosters,
		accounts: accounts,
		resolver: resolver,
		hooks:    h,
	}
}

// register creates a pending match. Only the queue calls this, while holding
// its own lock.
func (c *Coordinator) register(a, b string) PendingMatch {
	entry := &pendingEntry{match: PendingMatch{
		MatchID:      uuid.NewString(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    c.hooks.now(),
		State:        StateAwaitingBoth,
	}}

	c.mu.Lock()
	c.table[a] = entry
	c.table[b] = entry
	c.mu.Unlock()

	return entry.match
}

// Lookup returns a snapshot of the participant's pending match.
func (c *Coordinator) Lookup(participantID string) (PendingMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.table[participantID]
	if !ok {
		return PendingMatch{}, false
	}
	return entry.match, true
}

func (c *Coordinator) isPending(participantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.table[participantID]
	return ok
}

// Pending returns the number of pending matches.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table) / 2
}

// Agree records participantID's agreement. The second agreement resolves the
// match: rosters and ratings are fetched without holding the lock, then the
// entry is re-validated before the result is committed.
func (c *Coordinator) Agree(ctx context.Context, participantID string) (AgreeResult, error) {
	c.mu.Lock()
	entry, ok := c.table[participantID]
	if !ok {
		c.mu.Unlock()
		return AgreeResult{}, ErrNoPendingMatch
	}
	if entry.match.State == StateResolving {
		snap := entry.match
		c.mu.Unlock()
		return AgreeResult{Status: AgreeResolving, Match: snap}, nil
	}

	firstTime := false
	if participantID == entry.match.ParticipantA && !entry.match.AgreedA {
		entry.match.AgreedA, firstTime = true, true
	}
	if participantID == entry.match.ParticipantB && !entry.match.AgreedB {
		entry.match.AgreedB, firstTime = true, true
	}

	if !entry.match.AgreedA || !entry.match.AgreedB {
		entry.match.State = StateAwaitingOne
		snap := entry.match
		c.mu.Unlock()

		if firstTime {
			c.hooks.record(models.MatchEvent{
				Type:         models.MatchEventAgreed,
				MatchID:      snap.MatchID,
				ParticipantA: snap.ParticipantA,
				ParticipantB: snap.ParticipantB,
				Actor:        participantID,
			})
		}
		return AgreeResult{Status: AgreeWaitingOnOpponent, Match: snap}, nil
	}

	entry.match.State = StateResolving
	entry.attempt++
	attempt := entry.attempt
	snap := entry.match
	c.mu.Unlock()

	c.hooks.record(models.MatchEvent{
		Type:         models.MatchEventAgreed,
		MatchID:      snap.MatchID,
		ParticipantA: snap.ParticipantA,
		ParticipantB: snap.ParticipantB,
		Actor:        participantID,
	})

	result, resolveErr := c.resolve(ctx, snap)

	c.mu.Lock()
	if c.table[snap.ParticipantA] != entry || entry.attempt != attempt || entry.match.State != StateResolving {
		// Canceled (or expired) while we were fetching.
		c.mu.Unlock()
		return AgreeResult{Match: snap}, ErrMatchAlreadyResolved
	}

	if resolveErr != nil {
		if isRosterError(resolveErr) {
			c.removeLocked(entry, StateCanceled)
			final := entry.match
			c.mu.Unlock()

			c.hooks.log.Info("match aborted, team not playable",
				zap.String("matchId", final.MatchID), zap.Error(resolveErr))
			c.announceCancel(final, "", ReasonIncompleteTeam)
			return AgreeResult{Match: final}, resolveErr
		}

		entry.match.State = StateAwaitingBoth
		entry.match.AgreedA, entry.match.AgreedB = false, false
		final := entry.match
		c.mu.Unlock()

		c.hooks.log.Warn("match resolution failed, agreements reset",
			zap.String("matchId", final.MatchID), zap.Error(resolveErr))
		return AgreeResult{Match: final}, fmt.Errorf("%w: %w", ErrDependencyUnavailable, resolveErr)
	}

	c.removeLocked(entry, StateResolved)
	final := entry.match
	c.mu.Unlock()

	c.commit(ctx, result)
	return AgreeResult{Status: AgreeResolved, Match: final, Result: &result}, nil
}

// resolve loads both teams and ratings concurrently and plays the match.
func (c *Coordinator) resolve(ctx context.Context, m PendingMatch) (MatchResult, error) {
	var (
		teamA, teamB       []game.Attributes
		ratingA, ratingB   int
		teamErrA, teamErrB error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		teamA, teamErrA = c.rosters.GetTeam(gctx, m.ParticipantA)
		return teamErrA
	})
	g.Go(func() error {
		teamB, teamErrB = c.rosters.GetTeam(gctx, m.ParticipantB)
		return teamErrB
	})
	g.Go(func() error {
		var err error
		ratingA, err = c.accounts.GetRating(gctx, m.ParticipantA)
		return err
	})
	g.Go(func() error {
		var err error
		ratingB, err = c.accounts.GetRating(gctx, m.ParticipantB)
		return err
	})
	if err := g.Wait(); err != nil {
		// A missing team decides the outcome even if another lookup failed first.
		for _, teamErr := range []error{teamErrA, teamErrB} {
			if isRosterError(teamErr) {
				return MatchResult{}, teamErr
			}
		}
		return MatchResult{}, err
	}

	strengthA, err := game.Evaluate(teamA)
	if err != nil {
		return MatchResult{}, fmt.Errorf("participant %s: %w", m.ParticipantA, err)
	}
	strengthB, err := game.Evaluate(teamB)
	if err != nil {
		return MatchResult{}, fmt.Errorf("participant %s: %w", m.ParticipantB, err)
	}

	res, err := c.resolver.Resolve(strengthA, strengthB, ratingA, ratingB)
	if err != nil {
		return MatchResult{}, err
	}

	return MatchResult{
		MatchID:      m.MatchID,
		ParticipantA: m.ParticipantA,
		ParticipantB: m.ParticipantB,
		Outcome:      res.Outcome,
		ScoreA:       res.ScoreA,
		ScoreB:       res.ScoreB,
		RatingDeltaA: res.RatingDeltaA,
		RatingDeltaB: res.RatingDeltaB,
		PowerA:       strengthA.TotalPower,
		PowerB:       strengthB.TotalPower,
		ResolvedAt:   c.hooks.now(),
	}, nil
}

// commit applies a resolved match. The match is already out of the table, so
// failures here are logged rather than undone.
func (c *Coordinator) commit(ctx context.Context, res MatchResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	deltas := []struct {
		id    string
		delta int
	}{
		{res.ParticipantA, res.RatingDeltaA},
		{res.ParticipantB, res.RatingDeltaB},
	}
	for _, d := range deltas {
		if err := c.accounts.ApplyRatingDelta(ctx, d.id, d.delta); err != nil {
			c.hooks.log.Error("failed to apply rating delta",
				zap.String("matchId", res.MatchID),
				zap.String("participantId", d.id),
				zap.Int("delta", d.delta),
				zap.Error(err))
		}
	}

	if c.hooks.recorder != nil {
		if err := c.hooks.recorder.RecordMatchResult(ctx, res.record()); err != nil {
			c.hooks.log.Error("failed to record match result",
				zap.String("matchId", res.MatchID), zap.Error(err))
		}
	}

	c.hooks.record(models.MatchEvent{
		Type:         models.MatchEventResolved,
		MatchID:      res.MatchID,
		ParticipantA: res.ParticipantA,
		ParticipantB: res.ParticipantB,
	})

	c.hooks.log.Info("match resolved",
		zap.String("matchId", res.MatchID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("scoreA", res.ScoreA),
		zap.Int("scoreB", res.ScoreB))

	ev := Event{Type: EventMatchStarted, MatchID: res.MatchID, Result: &res}
	c.hooks.notify(res.ParticipantA, ev)
	c.hooks.notify(res.ParticipantB, ev)
}

// Cancel removes participantID's pending match. Both participants become free
// to enqueue again.
func (c *Coordinator) Cancel(participantID, reason string) (PendingMatch, error) {
	c.mu.Lock()
	entry, ok := c.table[participantID]
	if !ok {
		c.mu.Unlock()
		return PendingMatch{}, ErrNoPendingMatch
	}
	c.removeLocked(entry, StateCanceled)
	snap := entry.match
	c.mu.Unlock()

	c.announceCancel(snap, participantID, reason)
	return snap, nil
}

// Expire cancels every pending match created before cutoff that is not being
// resolved.
func (c *Coordinator) Expire(cutoff time.Time) []PendingMatch {
	c.mu.Lock()
	var expired []PendingMatch
	for id, entry := range c.table {
		// Each entry is keyed twice; visit it once.
		if id != entry.match.ParticipantA {
			continue
		}
		if entry.match.State == StateResolving || !entry.match.CreatedAt.Before(cutoff) {
			continue
		}
		c.removeLocked(entry, StateCanceled)
		expired = append(expired, entry.match)
	}
	c.mu.Unlock()

	for _, m := range expired {
		c.announceCancel(m, "", ReasonTimeout)
	}
	return expired
}

func (c *Coordinator) removeLocked(entry *pendingEntry, state AgreementState) {
	entry.match.State = state
	if c.table[entry.match.ParticipantA] == entry {
		delete(c.table, entry.match.ParticipantA)
	}
	if c.table[entry.match.ParticipantB] == entry {
		delete(c.table, entry.match.ParticipantB)
	}
}

// announceCancel notifies both sides. by is the participant who canceled, if any.
func (c *Coordinator) announceCancel(m PendingMatch, by, reason string) {
	c.hooks.record(models.MatchEvent{
		Type:         models.MatchEventCanceled,
		MatchID:      m.MatchID,
		ParticipantA: m.ParticipantA,
		ParticipantB: m.ParticipantB,
		Actor:        by,
		Reason:       reason,
	})

	ev := Event{Type: EventMatchCanceled, MatchID: m.MatchID, Reason: reason}
	c.hooks.notify(m.ParticipantA, ev)
	c.hooks.notify(m.ParticipantB, ev)
}

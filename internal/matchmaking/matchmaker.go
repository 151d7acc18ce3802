package matchmaking

import (
	"context"
	"sync"
	"time"

	"soccer-game/internal/game"
	"soccer-game/internal/models"
	"soccer-game/internal/rating"

	"go.uber.org/zap"
)

const defaultSweepInterval = 2 * time.Second

// Options configures a Matchmaker. Zero timeouts disable the matching sweep.
type Options struct {
	Queue            QueueOptions
	AgreementTimeout time.Duration
	QueueTimeout     time.Duration
	SweepInterval    time.Duration

	Policy   rating.Policy
	Source   game.Source
	Recorder ResultRecorder
	Journal  Journal
	Logger   *zap.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Matchmaker owns the pairing queue and the agreement coordinator. Construct
// one per process, set its notifier, then Start it.
type Matchmaker struct {
	queue    *Queue
	coord    *Coordinator
	accounts AccountService
	hooks    *hooks
	opts     Options

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(rosters RosterService, accounts AccountService, opts Options) *Matchmaker {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	h := &hooks{
		notifier: nopNotifier{},
		journal:  opts.Journal,
		recorder: opts.Recorder,
		log:      opts.Logger,
		now:      opts.Clock,
	}

	coord := newCoordinator(rosters, accounts, game.NewResolver(opts.Source, opts.Policy), h)
	queue := NewQueue(coord, opts.Queue)
	queue.now = opts.Clock

	return &Matchmaker{
		queue:    queue,
		coord:    coord,
		accounts: accounts,
		hooks:    h,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
}

// SetNotifier registers where events are delivered. Call before Start.
func (m *Matchmaker) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.hooks.notifier = n
}

// Start begins the background sweep loop.
func (m *Matchmaker) Start() {
	m.ticker = time.NewTicker(m.opts.SweepInterval)
	m.wg.Add(1)
	go m.sweepLoop()
	m.hooks.log.Info("matchmaker started", zap.Duration("sweepInterval", m.opts.SweepInterval))
}

// Stop halts the sweep loop and waits for it to exit.
func (m *Matchmaker) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		if m.ticker != nil {
			m.ticker.Stop()
		}
	})
	m.wg.Wait()
}

func (m *Matchmaker) sweepLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

// sweep expires stale entries and retries pairing, since a widening rating
// window can make a blocked head compatible without any new enqueue.
func (m *Matchmaker) sweep() {
	now := m.hooks.now()

	if m.opts.QueueTimeout > 0 {
		for _, w := range m.queue.Expire(now.Add(-m.opts.QueueTimeout)) {
			m.hooks.log.Info("queue entry expired", zap.String("participantId", w.ParticipantID))
			m.hooks.record(models.MatchEvent{
				Type:   models.MatchEventQueueExpired,
				Actor:  w.ParticipantID,
				Reason: ReasonTimeout,
			})
			m.hooks.notify(w.ParticipantID, Event{Type: EventQueueExpired})
		}
	}

	if m.opts.AgreementTimeout > 0 {
		for _, pm := range m.coord.Expire(now.Add(-m.opts.AgreementTimeout)) {
			m.hooks.log.Info("pending match expired", zap.String("matchId", pm.MatchID))
		}
	}

	m.announceMatches(m.queue.Pair())
}

// Join puts participantID in the queue. If the rating lookup fails the
// participant still joins, without a rating gate.
func (m *Matchmaker) Join(ctx context.Context, participantID string) (JoinResult, error) {
	if participantID == "" {
		return JoinResult{}, ErrInvalidParticipant
	}

	wp := WaitingParticipant{ParticipantID: participantID}
	if r, err := m.accounts.GetRating(ctx, participantID); err != nil {
		m.hooks.log.Warn("rating unavailable, joining without rating gate",
			zap.String("participantId", participantID), zap.Error(err))
	} else {
		wp.Rating = &r
	}

	res := m.queue.Enqueue(wp)
	m.announceMatches(res.Formed)

	if res.Match != nil {
		return JoinResult{
			Status:     JoinMatched,
			MatchID:    res.Match.MatchID,
			OpponentID: res.Match.Opponent(participantID),
			Match:      res.Match,
		}, nil
	}
	return JoinResult{Status: JoinQueued, Position: res.Position}, nil
}

func (m *Matchmaker) Agree(ctx context.Context, participantID string) (AgreeResult, error) {
	return m.coord.Agree(ctx, participantID)
}

// Leave takes participantID out of the queue or cancels its pending match.
func (m *Matchmaker) Leave(ctx context.Context, participantID string) LeaveResult {
	return m.withdraw(participantID, ReasonLeft)
}

// Disconnect is called when a participant's last session closes.
func (m *Matchmaker) Disconnect(ctx context.Context, participantID string) {
	res := m.withdraw(participantID, ReasonDisconnected)
	if res.Left || res.Canceled {
		m.hooks.log.Info("participant disconnected",
			zap.String("participantId", participantID),
			zap.Bool("leftQueue", res.Left),
			zap.Bool("canceledMatch", res.Canceled))
	}
}

func (m *Matchmaker) withdraw(participantID, reason string) LeaveResult {
	var res LeaveResult
	res.Left = m.queue.Cancel(participantID)
	if _, err := m.coord.Cancel(participantID, reason); err == nil {
		res.Canceled = true
	}
	return res
}

// Status reports where participantID currently is.
func (m *Matchmaker) Status(participantID string) Status {
	st := Status{State: ParticipantIdle, QueueSize: m.queue.Size()}
	if pm, ok := m.coord.Lookup(participantID); ok {
		st.State = ParticipantPending
		st.Match = &pm
		return st
	}
	if pos := m.queue.Position(participantID); pos > 0 {
		st.State = ParticipantWaiting
		st.Position = pos
	}
	return st
}

func (m *Matchmaker) QueueSize() int {
	return m.queue.Size()
}

func (m *Matchmaker) PendingMatches() int {
	return m.coord.Pending()
}

func (m *Matchmaker) announceMatches(formed []PendingMatch) {
	for _, pm := range formed {
		m.hooks.log.Info("match found",
			zap.String("matchId", pm.MatchID),
			zap.String("participantA", pm.ParticipantA),
			zap.String("participantB", pm.ParticipantB))

		m.hooks.record(models.MatchEvent{
			Type:         models.MatchEventPaired,
			MatchID:      pm.MatchID,
			ParticipantA: pm.ParticipantA,
			ParticipantB: pm.ParticipantB,
		})

		m.hooks.notify(pm.ParticipantA, Event{Type: EventMatchFound, MatchID: pm.MatchID, OpponentID: pm.ParticipantB})
		m.hooks.notify(pm.ParticipantB, Event{Type: EventMatchFound, MatchID: pm.MatchID, OpponentID: pm.ParticipantA})
	}
}

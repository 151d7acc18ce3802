package matchmaking

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"soccer-game/internal/game"
	"soccer-game/internal/models"

	"go.uber.org/zap/zaptest"
)

// fakeRoster serves fixed teams. When gate is set, GetTeam signals entered
// and blocks until gate is closed.
type fakeRoster struct {
	mu      sync.Mutex
	teams   map[string][]game.Attributes
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{teams: make(map[string][]game.Attributes)}
}

func (f *fakeRoster) setTeam(id string, team []game.Attributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams[id] = team
}

func (f *fakeRoster) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRoster) GetTeam(ctx context.Context, id string) ([]game.Attributes, error) {
	f.mu.Lock()
	gate, entered, err := f.gate, f.entered, f.err
	team, ok := f.teams[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrNoTeam
	}
	return team, nil
}

type fakeAccounts struct {
	mu      sync.Mutex
	ratings map[string]int
	getErr  error
	applied map[string][]int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{ratings: make(map[string]int), applied: make(map[string][]int)}
}

func (f *fakeAccounts) GetRating(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	r, ok := f.ratings[id]
	if !ok {
		return models.DefaultRating, nil
	}
	return r, nil
}

func (f *fakeAccounts) ApplyRatingDelta(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.ratings[id] + delta
	if r < 0 {
		r = 0
	}
	f.ratings[id] = r
	f.applied[id] = append(f.applied[id], delta)
	return nil
}

func (f *fakeAccounts) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *fakeAccounts) rating(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ratings[id]
}

func (f *fakeAccounts) appliedCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied[id])
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]Event)}
}

func (n *recordingNotifier) Notify(id string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[id] = append(n.events[id], ev)
}

func (n *recordingNotifier) of(id string, typ EventType) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events[id] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type memoryJournal struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (j *memoryJournal) Record(ev models.MatchEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

func (j *memoryJournal) count(typ models.MatchEventType) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, ev := range j.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []models.MatchRecord
}

func (r *memoryRecorder) RecordMatchResult(ctx context.Context, rec models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func squad(each int) []game.Attributes {
	p := game.Attributes{Speed: each, GoalDecisiveness: each, ShootPower: each, Defense: each, Stamina: each}
	return []game.Attributes{p, p, p}
}

type harness struct {
	mm       *Matchmaker
	roster   *fakeRoster
	accounts *fakeAccounts
	notifier *recordingNotifier
	journal  *memoryJournal
	recorder *memoryRecorder
	clock    *fakeClock
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		roster:   newFakeRoster(),
		accounts: newFakeAccounts(),
		notifier: newRecordingNotifier(),
		journal:  &memoryJournal{},
		recorder: &memoryRecorder{},
		clock:    newFakeClock(),
	}
	opts.Source = rand.New(rand.NewSource(7))
	opts.Journal = h.journal
	opts.Recorder = h.recorder
	opts.Logger = zaptest.NewLogger(t)
	opts.Clock = h.clock.Now

	h.mm = New(h.roster, h.accounts, opts)
	h.mm.SetNotifier(h.notifier)
	return h
}

// newTestQueue builds a queue whose coordinator has no collaborators; it is
// only used for pairing.
func newTestQueue(t *testing.T, opts QueueOptions, clock *fakeClock) *Queue {
	t.Helper()
	h := &hooks{notifier: nopNotifier{}, log: zaptest.NewLogger(t), now: clock.Now}
	q := NewQueue(newCoordinator(nil, nil, game.NewResolver(nil, nil), h), opts)
	q.now = clock.Now
	return q
}

func rated(id string, r int) WaitingParticipant {
	return WaitingParticipant{ParticipantID: id, Rating: &r}
}

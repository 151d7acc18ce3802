package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"soccer-game/internal/matchmaking"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type wsFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`

	// matchmaking events
	MatchID    string                   `json:"matchId"`
	OpponentID string                   `json:"opponentId"`
	Reason     string                   `json:"reason"`
	Result     *matchmaking.MatchResult `json:"result"`
}

// newWSServer serves the matchmaking socket, taking the participant id from
// the "as" query parameter in place of a token. configure runs before the hub
// starts.
func newWSServer(t *testing.T, mm Matchmaker, configure func(hub *Hub)) (*Hub, string) {
	t.Helper()
	log := zaptest.NewLogger(t)

	hub := NewHub(log)
	hub.SetDisconnectHandler(func(id string) { mm.Disconnect(context.Background(), id) })
	if configure != nil {
		configure(hub)
	}
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewWebSocketHandler(hub, mm, log)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleMatchmakingWebSocket(w, asParticipant(r, r.URL.Query().Get("as")))
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, as string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?as="+as, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frameType string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": frameType}))
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) wsFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", frameType)
		if f.Type == frameType {
			return f
		}
	}
}

func TestWebSocket_RejectsAnonymous(t *testing.T) {
	h := NewWebSocketHandler(NewHub(nil), &stubMatchmaker{}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.HandleMatchmakingWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws/matchmaking", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebSocket_SendsStatusOnConnect(t *testing.T) {
	mm := &stubMatchmaker{status: matchmaking.Status{State: matchmaking.ParticipantIdle, QueueSize: 4}}
	_, url := newWSServer(t, mm, nil)

	conn := dial(t, url, "alice")
	f := readUntil(t, conn, "status")

	var st matchmaking.Status
	require.NoError(t, json.Unmarshal(f.Data, &st))
	assert.Equal(t, matchmaking.ParticipantIdle, st.State)
	assert.Equal(t, 4, st.QueueSize)
}

func TestWebSocket_BadFrames(t *testing.T) {
	_, url := newWSServer(t, &stubMatchmaker{}, nil)
	conn := dial(t, url, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := readUntil(t, conn, "error")
	assert.Equal(t, "INVALID_MESSAGE", f.Code)

	send(t, conn, "dance")
	f = readUntil(t, conn, "error")
	assert.Equal(t, "UNKNOWN_TYPE", f.Code)
}

func TestWebSocket_AgreeErrorFrame(t *testing.T) {
	_, url := newWSServer(t, &stubMatchmaker{agreeErr: matchmaking.ErrNoPendingMatch}, nil)
	conn := dial(t, url, "alice")

	send(t, conn, frameAgree)
	f := readUntil(t, conn, "error")
	assert.Equal(t, "NO_PENDING_MATCH", f.Code)
}

func TestWebSocket_FullMatch(t *testing.T) {
	log := zaptest.NewLogger(t)
	accounts := newMemAccounts(map[string]int{"alice": 1000, "bob": 1000})
	roster := memRoster{"alice": squad(90), "bob": squad(10)}

	mm := matchmaking.New(roster, accounts, matchmaking.Options{
		Queue:  matchmaking.DefaultQueueOptions(),
		Logger: log,
	})
	_, url := newWSServer(t, mm, func(hub *Hub) {
		mm.SetNotifier(NewSessionNotifier(hub, nil, log))
	})

	alice := dial(t, url, "alice")
	readUntil(t, alice, "status")
	send(t, alice, frameJoinQueue)
	f := readUntil(t, alice, "joinResult")
	assert.Contains(t, string(f.Data), `"queued"`)

	bob := dial(t, url, "bob")
	readUntil(t, bob, "status")
	send(t, bob, frameJoinQueue)

	found := readUntil(t, alice, string(matchmaking.EventMatchFound))
	assert.Equal(t, "bob", found.OpponentID)
	found = readUntil(t, bob, string(matchmaking.EventMatchFound))
	assert.Equal(t, "alice", found.OpponentID)
	matchID := found.MatchID

	send(t, alice, frameAgree)
	f = readUntil(t, alice, "agreeResult")
	assert.Contains(t, string(f.Data), `"waitingOnOpponent"`)

	send(t, bob, frameAgree)
	for _, conn := range []*websocket.Conn{alice, bob} {
		started := readUntil(t, conn, string(matchmaking.EventMatchStarted))
		require.NotNil(t, started.Result)
		assert.Equal(t, matchID, started.MatchID)
		assert.Greater(t, started.Result.PowerA+started.Result.PowerB, 0)
	}
	f = readUntil(t, bob, "agreeResult")
	assert.Contains(t, string(f.Data), `"resolved"`)

	assert.Equal(t, 0, mm.PendingMatches())
	assert.NotEqual(t, 2000, accounts.rating("alice")+accounts.rating("bob"))
}

func TestWebSocket_LastSessionCloseLeavesQueue(t *testing.T) {
	log := zaptest.NewLogger(t)
	mm := matchmaking.New(memRoster{}, newMemAccounts(map[string]int{"alice": 1000}), matchmaking.Options{Logger: log})
	hub, url := newWSServer(t, mm, func(hub *Hub) {
		mm.SetNotifier(NewSessionNotifier(hub, nil, log))
	})

	first := dial(t, url, "alice")
	second := dial(t, url, "alice")
	readUntil(t, first, "status")
	readUntil(t, second, "status")
	require.Equal(t, 2, hub.Sessions("alice"))

	send(t, first, frameJoinQueue)
	readUntil(t, first, "joinResult")
	require.Equal(t, matchmaking.ParticipantWaiting, mm.Status("alice").State)

	first.Close()
	require.Eventually(t, func() bool { return hub.Sessions("alice") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, matchmaking.ParticipantWaiting, mm.Status("alice").State)

	second.Close()
	assert.Eventually(t, func() bool {
		return mm.Status("alice").State == matchmaking.ParticipantIdle
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_DisconnectCancelsPendingMatch(t *testing.T) {
	log := zaptest.NewLogger(t)
	accounts := newMemAccounts(map[string]int{"alice": 1000, "bob": 1000})
	mm := matchmaking.New(memRoster{}, accounts, matchmaking.Options{Logger: log})
	_, url := newWSServer(t, mm, func(hub *Hub) {
		mm.SetNotifier(NewSessionNotifier(hub, nil, log))
	})

	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	readUntil(t, alice, "status")
	readUntil(t, bob, "status")

	send(t, alice, frameJoinQueue)
	readUntil(t, alice, "joinResult")
	send(t, bob, frameJoinQueue)
	readUntil(t, bob, string(matchmaking.EventMatchFound))

	alice.Close()

	canceled := readUntil(t, bob, string(matchmaking.EventMatchCanceled))
	assert.Equal(t, matchmaking.ReasonDisconnected, canceled.Reason)
	assert.Equal(t, matchmaking.ParticipantIdle, mm.Status("bob").State)
}

func TestHub_DeliverReachesEverySession(t *testing.T) {
	hub, url := newWSServer(t, &stubMatchmaker{}, nil)

	a1 := dial(t, url, "alice")
	a2 := dial(t, url, "alice")
	b := dial(t, url, "bob")
	for _, c := range []*websocket.Conn{a1, a2, b} {
		readUntil(t, c, "status")
	}

	hub.Deliver("alice", []byte(`{"type":"ping"}`))
	readUntil(t, a1, "ping")
	readUntil(t, a2, "ping")

	b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := b.ReadMessage()
	assert.Error(t, err)
}

func TestSessionNotifier_PublishesWhenBusEnabled(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	t.Cleanup(hub.Stop)

	bus := &recordingPublisher{published: make(chan string, 1)}
	n := NewSessionNotifier(hub, bus, zaptest.NewLogger(t))
	n.Notify("alice", matchmaking.Event{Type: matchmaking.EventQueueExpired})

	select {
	case payload := <-bus.published:
		assert.JSONEq(t, `{"type":"queueExpired"}`, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

type recordingPublisher struct {
	published chan string
}

func (p *recordingPublisher) Enabled() bool { return true }

func (p *recordingPublisher) Publish(participantID string, payload []byte) {
	if participantID == "alice" {
		p.published <- string(payload)
	}
}

func TestHub_StopWaitsForDisconnectCallbacks(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	hub, url := newWSServer(t, &stubMatchmaker{}, func(hub *Hub) {
		hub.SetDisconnectHandler(func(id string) {
			close(entered)
			<-release
		})
	})

	alice := dial(t, url, "alice")
	readUntil(t, alice, "status")
	alice.Close()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback did not run")
	}

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a disconnect callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

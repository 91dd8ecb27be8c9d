package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/versus-relay/internal/lobby"
	"github.com/DoyleJ11/versus-relay/internal/ws"
	"github.com/DoyleJ11/versus-relay/pkg/protocol"
)

// outcomes collects OnGameOver calls.
type outcomes struct {
	mu  sync.Mutex
	got []Outcome
}

func (o *outcomes) add(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, out)
}

func (o *outcomes) all() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.got...)
}

func newTestClient(t *testing.T, name string) (*Client, *outcomes) {
	rec := &outcomes{}
	c := New(Config{Name: name, ShipType: 1, MatchID: 3, OnGameOver: rec.add}, zaptest.NewLogger(t))
	return c, rec
}

func TestChatLogKeepsLastTen(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	for i := range 12 {
		c.handle(protocol.Chat{Name: "Bolt", Content: fmt.Sprintf("m%d", i)})
	}
	log := c.ChatMessages()
	require.Len(t, log, chatLimit)
	assert.Equal(t, "Bolt: m2", log[0])
	assert.Equal(t, "Bolt: m11", log[9])
}

func TestRosterIsAuthoritative(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.handle(protocol.Join{Name: "Bolt", ShipType: 2})
	c.handle(protocol.Join{Name: "Ghost", ShipType: 1})

	c.handle(protocol.SystemChat(protocol.RosterContent([]string{"Ace", "Bolt", "Cy"})))

	assert.Equal(t, []string{"Bolt", "Cy"}, c.OnlinePlayers())
	players := c.RemotePlayers()
	require.Len(t, players, 2)
	assert.Equal(t, "Bolt", players[0].Name)
	assert.Equal(t, 2, players[0].ShipType)
	assert.Equal(t, "Cy", players[1].Name)
	assert.Equal(t, RemoteHealth, players[1].Health)
}

func TestOwnRecordsIgnored(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.handle(protocol.Join{Name: "Ace"})
	c.handle(protocol.Position{Name: "Ace", X: 1, Y: 2, Health: 3})
	c.handle(protocol.Shoot{Name: "Ace", ProjectileX: 1, ProjectileY: 2})
	assert.Empty(t, c.RemotePlayers())
	assert.Empty(t, c.RemoteProjectiles())
}

func TestShootIsMirrored(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.handle(protocol.Shoot{Name: "Bolt", ProjectileX: 200, ProjectileY: 400})
	ps := c.RemoteProjectiles()
	require.Len(t, ps, 1)
	assert.Equal(t, RemoteProjectile{X: 200, Y: FieldHeight - 400 - ProjectileHeight, Active: true}, ps[0])

	c.Tick()
	assert.Equal(t, ps[0].Y+ProjectileSpeed, c.RemoteProjectiles()[0].Y)

	ship := Rect{X: 190, Y: ps[0].Y, W: ShipWidth, H: ShipHeight}
	assert.Equal(t, 1, c.CollideLocal(ship))
	assert.Equal(t, 0, c.CollideLocal(ship))
	c.Tick()
	assert.Empty(t, c.RemoteProjectiles())
}

func TestHitsAddressedToUsAreCounted(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.handle(protocol.Hit{Name: "Ace"})
	c.handle(protocol.Hit{Name: "Bolt"})
	c.handle(protocol.Hit{Name: "Ace"})
	assert.Equal(t, 2, c.TakeHits())
	assert.Equal(t, 0, c.TakeHits())
}

func TestLastStandingReportedOnce(t *testing.T) {
	c, rec := newTestClient(t, "Ace")
	c.handle(protocol.Join{Name: "Bolt"})
	c.handle(protocol.Join{Name: "Cy"})

	c.handle(protocol.Position{Name: "Bolt", Health: 0, Score: 40})
	assert.Empty(t, rec.all(), "Cy is still alive")

	c.handle(protocol.Position{Name: "Cy", X: 10, Y: 20, Health: 0, Score: 70})
	c.handle(protocol.GameOver{Name: "Ace", IsWinner: true, Score: 120})

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, Outcome{Name: "Ace", IsWinner: true, Score: 70, LastStanding: true}, got[0])
}

func TestLeaveForgetsPlayer(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.handle(protocol.Join{Name: "Bolt"})
	c.handle(protocol.Leave{Name: "Bolt"})
	assert.Empty(t, c.RemotePlayers())
	assert.Empty(t, c.OnlinePlayers())
}

func TestSendWhileDisconnectedIsNoop(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	c.SendChat("hello")
	c.SendPosition(1, 2, 3, 4)
	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.Connected())
}

func relayServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := zaptest.NewLogger(t)
	lb := lobby.NewLobby(ctx, log, nil)
	opts := ws.DefaultOptions()
	opts.PingInterval = 0
	srv := httptest.NewServer(ws.Handler(lb, opts, log))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectAgainstRelay(t *testing.T) {
	url := relayServer(t)
	ctx := context.Background()

	ace, aceOut := newTestClient(t, "Ace")
	require.True(t, ace.Connect(ctx, url))
	defer ace.Disconnect()

	bolt, boltOut := newTestClient(t, "Bolt")
	require.True(t, bolt.Connect(ctx, url))
	defer bolt.Disconnect()

	dup, _ := newTestClient(t, "Ace")
	assert.False(t, dup.Connect(ctx, url))
	assert.False(t, dup.Connected())

	require.Eventually(t, func() bool {
		return len(ace.RemotePlayers()) == 1 && len(bolt.RemotePlayers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bolt.SendChat("gl hf")
	require.Eventually(t, func() bool {
		return contains(ace.ChatMessages(), "Bolt: gl hf")
	}, 2*time.Second, 10*time.Millisecond)

	bolt.SendProjectile(300, 450)
	require.Eventually(t, func() bool { return len(ace.RemoteProjectiles()) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, MirrorY(450, FieldHeight, ProjectileHeight), ace.RemoteProjectiles()[0].Y)

	// Bolt reaches zero: the relay declares Ace and both hear about it once.
	bolt.SendPosition(380, 450, 0, 55)
	require.Eventually(t, func() bool {
		return len(aceOut.all()) == 1 && len(boltOut.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, aceOut.all()[0].IsWinner)
	assert.False(t, boltOut.all()[0].IsWinner)
	assert.Equal(t, 55, boltOut.all()[0].Score)

	bolt.Disconnect()
	require.Eventually(t, func() bool { return len(ace.RemotePlayers()) == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Len(t, aceOut.all(), 1)
}

func TestListenerSurvivesBadRecords(t *testing.T) {
	hangup := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: protocol.Subprotocols()})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		accepted, _ := protocol.Encode(protocol.SystemChat(protocol.NameAccepted))
		chat, _ := protocol.Encode(protocol.Chat{Name: "Bolt", Content: "after noise"})
		for _, rec := range [][]byte{
			accepted,
			[]byte(`{"t":"warp","name":"Bolt"}`),
			[]byte("garbage"),
			chat,
		} {
			if err := conn.Write(ctx, websocket.MessageText, rec); err != nil {
				return
			}
		}
		<-hangup
	}))
	defer srv.Close()

	var disconnects sync.WaitGroup
	disconnects.Add(1)
	c := New(Config{Name: "Ace", OnDisconnect: func(error) { disconnects.Done() }}, zaptest.NewLogger(t))
	require.True(t, c.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")))

	require.Eventually(t, func() bool {
		return contains(c.ChatMessages(), "Bolt: after noise")
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.Connected())

	close(hangup)
	disconnects.Wait()
	assert.False(t, c.Connected())
}

func TestHeartbeatDetectsStalledRelay(t *testing.T) {
	hangup := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: protocol.Subprotocols()})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
		accepted, _ := protocol.Encode(protocol.SystemChat(protocol.NameAccepted))
		if err := conn.Write(r.Context(), websocket.MessageText, accepted); err != nil {
			return
		}
		// never read again, so pings go unanswered
		<-hangup
	}))
	defer srv.Close()
	defer close(hangup)

	lost := make(chan error, 1)
	c := New(Config{
		Name:         "Ace",
		PingInterval: 50 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		OnDisconnect: func(err error) { lost <- err },
	}, zaptest.NewLogger(t))
	require.True(t, c.Connect(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")))

	select {
	case err := <-lost:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("stalled relay was never detected")
	}
	assert.False(t, c.Connected())
}

func TestIdentityAccessors(t *testing.T) {
	c, _ := newTestClient(t, "Ace")
	assert.Equal(t, "Ace", c.Name())
	assert.Equal(t, 3, c.MatchID())
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/internal/match"
	"github.com/DoyleJ11/versus-relay/pkg/protocol"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// Join is sent by a handler once the first record decoded to a Join.
type Join struct {
	Name     string
	ShipType int
	MatchID  int
	Outbox   chan protocol.Message // where this client wants to receive records
	Reply    chan JoinResult
}

func (Join) isLobbyMsg() {}

type JoinResult struct {
	Err error // match.ErrNameTaken, match.ErrEmptyName, match.ErrInvalidName

	// Greeting is NAME_ACCEPTED followed by one Join per player already
	// registered. The handler writes it before draining Outbox, so the
	// snapshot never competes with the outbox bound.
	Greeting []protocol.Message
}

// FromClient carries one record read after the handshake. Name is the
// identity the handshake verified, not whatever the record claims.
type FromClient struct {
	Name string
	Msg  protocol.Message
}

func (FromClient) isLobbyMsg() {}

// Leave is sent when a handler's connection is gone. Outbox identifies the
// handler so a stale Leave cannot evict a newer player with the same name.
type Leave struct {
	Name   string
	Outbox chan protocol.Message
}

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	NumClients    int
	MaxEverJoined int
	State         match.State
	Sessions      []match.Session
}

// ResultRecorder persists per-player results once a winner is declared.
type ResultRecorder interface {
	SaveMultiplayerResult(ctx context.Context, matchID int, name string, score int) error
}

const recordTimeout = 5 * time.Second

// Lobby owns the match registry. Every inbox message is handled to completion
// before the next one, which makes each join, position update, disconnect and
// win check atomic with respect to all other handlers.
type Lobby struct {
	inbox    chan Msg
	registry *match.Registry
	clients  map[string]chan protocol.Message
	dropped  []string
	recorder ResultRecorder
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLobby(parent context.Context, log *zap.Logger, recorder ResultRecorder) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		inbox:    make(chan Msg, 64),
		registry: match.NewRegistry(),
		clients:  make(map[string]chan protocol.Message),
		recorder: recorder,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				greeting, err := l.join(msg)
				msg.Reply <- JoinResult{Err: err, Greeting: greeting}

			case FromClient:
				l.fromClient(msg)

			case Leave:
				if out, ok := l.clients[msg.Name]; ok && out == msg.Outbox {
					l.disconnect(msg.Name, "connection closed")
				}

			case GetState:
				msg.Reply <- View{
					NumClients:    len(l.clients),
					MaxEverJoined: l.registry.MaxEverJoined(),
					State:         l.registry.State(),
					Sessions:      l.registry.Sessions(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
			l.reapDropped()
		}
	}
}

func (l *Lobby) join(msg Join) ([]protocol.Message, error) {
	if err := l.registry.Join(msg.Name, msg.ShipType, msg.MatchID); err != nil {
		l.log.Info("join rejected", zap.String("player", msg.Name), zap.Error(err))
		return nil, err
	}

	existing := l.registry.Sessions()
	greeting := make([]protocol.Message, 0, len(existing))
	greeting = append(greeting, protocol.SystemChat(protocol.NameAccepted))
	for _, s := range existing {
		if s.Name == msg.Name {
			continue
		}
		greeting = append(greeting, protocol.Join{Name: s.Name, ShipType: s.ShipType, MatchID: s.MatchID})
	}
	l.clients[msg.Name] = msg.Outbox

	l.broadcast(protocol.Join{Name: msg.Name, ShipType: msg.ShipType, MatchID: msg.MatchID}, msg.Name)
	l.broadcast(protocol.SystemChat(protocol.JoinedNotice(msg.Name)), "")
	l.broadcastRoster()

	l.log.Info("player joined",
		zap.String("player", msg.Name),
		zap.Int("match_id", msg.MatchID),
		zap.Int("players", l.registry.Len()),
	)
	return greeting, nil
}

func (l *Lobby) fromClient(msg FromClient) {
	if _, ok := l.clients[msg.Name]; !ok {
		// dropped handler still draining its socket
		return
	}

	switch m := msg.Msg.(type) {
	case protocol.Position:
		eliminated, _ := l.registry.ApplyPosition(msg.Name, m.X, m.Y, m.Health, m.Score)
		if eliminated {
			l.log.Info("player eliminated", zap.String("player", msg.Name))
			l.broadcast(protocol.SystemChat(protocol.EliminatedNotice(msg.Name)), "")
			l.checkWinner()
		}
		l.broadcast(m, msg.Name)

	case protocol.Shoot, protocol.Hit:
		l.broadcast(m, msg.Name)

	case protocol.Chat:
		l.broadcast(protocol.Chat{Name: msg.Name, Content: m.Content, MatchID: m.MatchID}, "")

	case protocol.GameOver:
		l.broadcast(m, "")

	default:
		l.log.Warn("ignoring record", zap.String("player", msg.Name), zap.String("tag", string(msg.Msg.Tag())))
	}
}

func (l *Lobby) disconnect(name, reason string) {
	out, ok := l.clients[name]
	if !ok {
		return
	}
	delete(l.clients, name)
	close(out) // tells the writer to hang up

	s, _ := l.registry.Remove(name)
	l.log.Info("player left", zap.String("player", name), zap.String("reason", reason))

	l.broadcast(protocol.Leave{Name: name, MatchID: s.MatchID}, "")
	l.broadcast(protocol.SystemChat(protocol.LeftNotice(name)), "")
	l.broadcastRoster()
	l.checkWinner()
}

func (l *Lobby) checkWinner() {
	out, ok := l.registry.CheckWinner()
	if !ok {
		return
	}
	l.log.Info("match concluded", zap.String("winner", out.Winner), zap.Int("score", out.WinnerScore))

	// winner gets the winning score, everyone else their own last score
	for _, r := range out.Results {
		l.sendTo(r.Name, protocol.GameOver{Name: r.Name, IsWinner: r.IsWinner, Score: r.Score, MatchID: r.MatchID})
	}
	l.record(out.Results)
}

// record runs off the loop so a slow database never stalls the relay.
func (l *Lobby) record(results []match.Result) {
	if l.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(l.ctx, recordTimeout)
		defer cancel()
		for _, r := range results {
			if err := l.recorder.SaveMultiplayerResult(ctx, r.MatchID, r.Name, r.Score); err != nil {
				l.log.Error("save multiplayer result",
					zap.String("player", r.Name),
					zap.Int("match_id", r.MatchID),
					zap.Error(err),
				)
			}
		}
	}()
}

func (l *Lobby) broadcastRoster() {
	l.broadcast(protocol.SystemChat(protocol.RosterContent(l.registry.Names())), "")
}

// broadcast delivers m to every client except exclude ("" excludes nobody).
func (l *Lobby) broadcast(m protocol.Message, exclude string) {
	for name := range l.clients {
		if name == exclude {
			continue
		}
		l.sendTo(name, m)
	}
}

func (l *Lobby) sendTo(name string, m protocol.Message) {
	out, ok := l.clients[name]
	if !ok {
		return
	}
	select {
	case out <- m:
		// ok
	default:
		// Client is slow/full - drop them once the current message is done.
		l.dropped = append(l.dropped, name)
	}
}

func (l *Lobby) reapDropped() {
	for len(l.dropped) > 0 {
		name := l.dropped[0]
		l.dropped = l.dropped[1:]
		l.disconnect(name, "outbox full")
	}
}

func (l *Lobby) shutdown() {
	for name, ch := range l.clients {
		close(ch) // Tell client no more records
		delete(l.clients, name)
	}
	l.cancel()
}

// Inbox exposes the loop's input so tests or the ws layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby stops processing messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Send delivers m unless the lobby or ctx is finished first.
func (l *Lobby) Send(ctx context.Context, m Msg) error {
	if l.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State asks the loop for a consistent view of the registry.
func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

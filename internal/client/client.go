package client

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/pkg/protocol"
)

const chatLimit = 10

// Outcome is the terminal event of a session, reported at most once.
type Outcome struct {
	Name     string
	IsWinner bool
	Score    int
	// LastStanding is set when the win was inferred locally from every known
	// remote reaching health <= 0, rather than announced by the relay.
	LastStanding bool
}

type Config struct {
	Name        string
	ShipType    int
	MatchID     int
	FieldHeight int
	Codec       protocol.Codec

	ConnectTimeout time.Duration // dial + handshake
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables the heartbeat
	OutboxSize     int

	OnGameOver   func(Outcome)
	OnChat       func(line string)
	OnDisconnect func(error) // only for failures, not for Disconnect()
}

func (c *Config) setDefaults() {
	if c.FieldHeight == 0 {
		c.FieldHeight = FieldHeight
	}
	if c.Codec == nil {
		c.Codec = protocol.JSON
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.OutboxSize == 0 {
		c.OutboxSize = 128
	}
}

// Client keeps one player's connection to the relay and the remote entities
// derived from it. The listener goroutine writes remote state; the game tick
// reads it through the snapshot methods. Both go through mu.
type Client struct {
	cfg Config
	log *zap.Logger

	mu          sync.RWMutex
	players     map[string]*RemotePlayer
	projectiles []RemoteProjectile
	chat        []string
	online      map[string]struct{}
	hits        int

	sessMu    sync.Mutex
	sess      *session
	concluded atomic.Bool
}

// session is one connected lifetime; a new Connect gets a new one.
type session struct {
	conn   *websocket.Conn
	codec  protocol.Codec
	out    chan protocol.Message
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func New(cfg Config, log *zap.Logger) *Client {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		log:     log.With(zap.String("player", cfg.Name)),
		players: make(map[string]*RemotePlayer),
		online:  make(map[string]struct{}),
	}
}

func (c *Client) Name() string { return c.cfg.Name }
func (c *Client) MatchID() int { return c.cfg.MatchID }

// Connect dials the relay, sends Join and waits for the handshake reply. Any
// failure, a taken name included, leaves the client disconnected and returns false.
func (c *Client) Connect(ctx context.Context, url string) bool {
	if c.current() != nil {
		c.log.Warn("connect while already connected")
		return false
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dctx, url, &websocket.DialOptions{
		Subprotocols: []string{c.cfg.Codec.Name()},
	})
	if err != nil {
		c.log.Warn("connect", zap.String("url", url), zap.Error(err))
		return false
	}
	codec := protocol.CodecFor(conn.Subprotocol())

	if err := writeMessage(dctx, conn, codec, protocol.Join{
		Name:     c.cfg.Name,
		ShipType: c.cfg.ShipType,
		MatchID:  c.cfg.MatchID,
	}, 0); err != nil {
		c.log.Warn("send join", zap.Error(err))
		conn.CloseNow()
		return false
	}

	_, data, err := conn.Read(dctx)
	if err != nil {
		c.log.Warn("handshake read", zap.Error(err))
		conn.CloseNow()
		return false
	}
	reply, err := codec.Decode(data)
	if err != nil {
		c.log.Warn("handshake decode", zap.Error(err))
		conn.CloseNow()
		return false
	}
	chat, ok := reply.(protocol.Chat)
	if !ok || !protocol.IsSystem(chat) || chat.Content != protocol.NameAccepted {
		if ok && chat.Content == protocol.NameExists {
			c.log.Info("name already taken")
		} else {
			c.log.Warn("unexpected handshake reply", zap.String("tag", string(reply.Tag())))
		}
		conn.CloseNow()
		return false
	}

	c.reset()
	sctx, scancel := context.WithCancel(context.Background())
	s := &session{
		conn:   conn,
		codec:  codec,
		out:    make(chan protocol.Message, c.cfg.OutboxSize),
		ctx:    sctx,
		cancel: scancel,
	}
	c.sessMu.Lock()
	c.sess = s
	c.sessMu.Unlock()

	go c.listen(s)
	go c.writeLoop(s)
	if c.cfg.PingInterval > 0 {
		go c.heartbeat(s)
	}
	c.log.Info("connected", zap.String("url", url), zap.String("codec", codec.Name()))
	return true
}

// Connected reports whether a session is live.
func (c *Client) Connected() bool { return c.current() != nil }

// Disconnect closes the connection. Safe to call any number of times, and
// before any Connect.
func (c *Client) Disconnect() {
	s := c.current()
	if s == nil {
		return
	}
	c.teardown(s, nil)
}

func (c *Client) current() *session {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.sess == nil || c.sess.ctx.Err() != nil {
		return nil
	}
	return c.sess
}

// teardown runs once per session regardless of who notices first.
func (c *Client) teardown(s *session, cause error) {
	s.once.Do(func() {
		c.sessMu.Lock()
		if c.sess == s {
			c.sess = nil
		}
		c.sessMu.Unlock()

		if cause == nil {
			s.conn.Close(websocket.StatusNormalClosure, "bye")
		}
		s.cancel()
		s.conn.CloseNow()

		if cause != nil {
			c.log.Info("disconnected", zap.Error(cause))
			if c.cfg.OnDisconnect != nil {
				c.cfg.OnDisconnect(cause)
			}
		} else {
			c.log.Info("disconnected")
		}
	})
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = make(map[string]*RemotePlayer)
	c.projectiles = nil
	c.online = make(map[string]struct{})
	c.hits = 0
	c.concluded.Store(false)
}

func (c *Client) listen(s *session) {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				// we hung up ourselves
				c.teardown(s, nil)
			} else {
				c.teardown(s, err)
			}
			return
		}
		msg, err := s.codec.Decode(data)
		if err != nil {
			c.log.Warn("dropping record", zap.Error(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writeLoop(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.out:
			if err := writeMessage(s.ctx, s.conn, s.codec, m, c.cfg.WriteTimeout); err != nil {
				c.log.Warn("send", zap.String("tag", string(m.Tag())), zap.Error(err))
				c.teardown(s, err)
				return
			}
		}
	}
}

func (c *Client) heartbeat(s *session) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(s.ctx, c.cfg.WriteTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.teardown(s, err)
				return
			}
		}
	}
}

// writeMessage encodes and writes m. A zero timeout leaves ctx as the only bound.
func writeMessage(ctx context.Context, conn *websocket.Conn, codec protocol.Codec, m protocol.Message, timeout time.Duration) error {
	payload, err := codec.Encode(m)
	if err != nil {
		return err
	}
	typ := websocket.MessageText
	if codec.Binary() {
		typ = websocket.MessageBinary
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return conn.Write(ctx, typ, payload)
}

// handle applies one inbound record to the remote state.
func (c *Client) handle(m protocol.Message) {
	switch v := m.(type) {
	case protocol.Join:
		if v.Name == c.cfg.Name {
			return
		}
		c.mu.Lock()
		c.ensurePlayer(v.Name, v.ShipType)
		c.online[v.Name] = struct{}{}
		c.mu.Unlock()

	case protocol.Position:
		if v.Name == c.cfg.Name {
			return
		}
		c.mu.Lock()
		p := c.ensurePlayer(v.Name, 0)
		c.online[v.Name] = struct{}{}
		p.X, p.Y, p.Health, p.Score = v.X, v.Y, v.Health, v.Score
		won := v.Health <= 0 && c.allRemotesDown()
		c.mu.Unlock()
		if won {
			c.conclude(Outcome{Name: c.cfg.Name, IsWinner: true, Score: v.Score, LastStanding: true})
		}

	case protocol.Shoot:
		if v.Name == c.cfg.Name {
			return
		}
		c.mu.Lock()
		c.projectiles = append(c.projectiles, newRemoteProjectile(v.ProjectileX, v.ProjectileY, c.cfg.FieldHeight))
		c.mu.Unlock()

	case protocol.Hit:
		if v.Name != c.cfg.Name {
			return
		}
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()

	case protocol.GameOver:
		c.conclude(Outcome{Name: v.Name, IsWinner: v.IsWinner, Score: v.Score})

	case protocol.Chat:
		line := v.Name + ": " + v.Content
		c.mu.Lock()
		c.appendChat(line)
		if protocol.IsSystem(v) {
			if names, ok := protocol.ParseRoster(v.Content); ok {
				c.applyRoster(names)
			}
		}
		c.mu.Unlock()
		if c.cfg.OnChat != nil {
			c.cfg.OnChat(line)
		}

	case protocol.Leave:
		c.mu.Lock()
		delete(c.players, v.Name)
		delete(c.online, v.Name)
		c.mu.Unlock()

	default:
		c.log.Warn("ignoring record", zap.String("tag", string(m.Tag())))
	}
}

func (c *Client) conclude(o Outcome) {
	if !c.concluded.CompareAndSwap(false, true) {
		return
	}
	c.log.Info("game over", zap.Bool("winner", o.IsWinner), zap.Int("score", o.Score))
	if c.cfg.OnGameOver != nil {
		c.cfg.OnGameOver(o)
	}
}

// ensurePlayer must be called with mu held.
func (c *Client) ensurePlayer(name string, shipType int) *RemotePlayer {
	p, ok := c.players[name]
	if !ok {
		p = newRemotePlayer(name, shipType)
		c.players[name] = p
	}
	return p
}

func (c *Client) allRemotesDown() bool {
	for _, p := range c.players {
		if p.Health > 0 {
			return false
		}
	}
	return true
}

func (c *Client) appendChat(line string) {
	c.chat = append(c.chat, line)
	if len(c.chat) > chatLimit {
		c.chat = slices.Delete(c.chat, 0, len(c.chat)-chatLimit)
	}
}

// applyRoster makes the announced set authoritative: unknown names appear,
// remotes missing from it are dropped.
func (c *Client) applyRoster(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == c.cfg.Name {
			continue
		}
		set[n] = struct{}{}
		c.ensurePlayer(n, 0)
	}
	for n := range c.players {
		if _, ok := set[n]; !ok {
			delete(c.players, n)
		}
	}
	c.online = set
}

// send queues m for the writer. Never blocks the caller: a full queue drops m,
// since the next periodic send supersedes it anyway.
func (c *Client) send(m protocol.Message) {
	s := c.current()
	if s == nil {
		return
	}
	select {
	case s.out <- m:
	default:
		c.log.Warn("outbox full, dropping", zap.String("tag", string(m.Tag())))
	}
}

func (c *Client) SendPosition(x, y, health, score int) {
	c.send(protocol.Position{Name: c.cfg.Name, X: x, Y: y, Health: health, Score: score, MatchID: c.cfg.MatchID})
}

func (c *Client) SendProjectile(x, y int) {
	c.send(protocol.Shoot{Name: c.cfg.Name, ProjectileX: x, ProjectileY: y, MatchID: c.cfg.MatchID})
}

func (c *Client) SendChat(content string) {
	c.send(protocol.Chat{Name: c.cfg.Name, Content: content, MatchID: c.cfg.MatchID})
}

// SendHit tells everyone that target was hit by one of our shots.
func (c *Client) SendHit(target string) {
	c.send(protocol.Hit{Name: target, MatchID: c.cfg.MatchID})
}

func (c *Client) SendGameOver(isWinner bool, score int) {
	c.send(protocol.GameOver{Name: c.cfg.Name, IsWinner: isWinner, Score: score, MatchID: c.cfg.MatchID})
}

// Tick moves remote projectiles one frame and forgets the ones that left the field.
func (c *Client) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.projectiles[:0]
	for _, p := range c.projectiles {
		if !p.Active {
			continue
		}
		p.advance(c.cfg.FieldHeight)
		if p.Active {
			live = append(live, p)
		}
	}
	c.projectiles = live
}

// CollideLocal deactivates remote projectiles overlapping the local ship and
// returns how many did.
func (c *Client) CollideLocal(ship Rect) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.projectiles {
		p := &c.projectiles[i]
		if p.Active && p.Hitbox().Intersects(ship) {
			p.Active = false
			n++
		}
	}
	return n
}

// TakeHits returns and clears the Hit notices naming the local player.
func (c *Client) TakeHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.hits
	c.hits = 0
	return n
}

// RemotePlayers returns a copy sorted by name.
func (c *Client) RemotePlayers() []RemotePlayer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RemotePlayer, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b RemotePlayer) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func (c *Client) RemoteProjectiles() []RemoteProjectile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.projectiles)
}

// ChatMessages returns the log, oldest first.
func (c *Client) ChatMessages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.chat)
}

func (c *Client) OnlinePlayers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.online))
	for n := range c.online {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

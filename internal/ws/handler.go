package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/versus-relay/internal/lobby"
	"github.com/DoyleJ11/versus-relay/internal/match"
	"github.com/DoyleJ11/versus-relay/pkg/protocol"
)

type Options struct {
	HandshakeTimeout time.Duration // first record must arrive within this
	WriteTimeout     time.Duration // per write and per ping
	PingInterval     time.Duration // 0 disables the heartbeat
	OutboxSize       int
	ReadLimit        int64
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     3 * time.Second,
		PingInterval:     15 * time.Second,
		OutboxSize:       64,
		ReadLimit:        1 << 16,
	}
}

func Handler(lb *lobby.Lobby, opts Options, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: protocol.Subprotocols(),
		})
		if err != nil {
			log.Warn("websocket accept", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		if opts.ReadLimit > 0 {
			conn.SetReadLimit(opts.ReadLimit)
		}

		codec := protocol.CodecFor(conn.Subprotocol())
		h := &handler{
			conn:  conn,
			lobby: lb,
			codec: codec,
			opts:  opts,
			log: log.With(
				zap.String("conn", uuid.NewString()),
				zap.String("remote", r.RemoteAddr),
				zap.String("codec", codec.Name()),
			),
		}
		h.serve(r.Context())
	}
}

type handler struct {
	conn  *websocket.Conn
	lobby *lobby.Lobby
	codec protocol.Codec
	opts  Options
	log   *zap.Logger
}

func (h *handler) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	join, ok := h.handshake(ctx)
	if !ok {
		return
	}

	out := make(chan protocol.Message, h.opts.OutboxSize)
	reply := make(chan lobby.JoinResult, 1)

	// Queued behind the Join in the same inbox, so it is also correct when we
	// stop waiting for the reply. A Leave for a rejected join carries an
	// outbox the lobby never saw and is ignored.
	defer func() {
		if err := h.lobby.Send(context.Background(), lobby.Leave{Name: join.Name, Outbox: out}); err != nil {
			h.log.Debug("leave after lobby closed", zap.Error(err))
		}
	}()

	if err := h.lobby.Send(ctx, lobby.Join{
		Name:     join.Name,
		ShipType: join.ShipType,
		MatchID:  join.MatchID,
		Outbox:   out,
		Reply:    reply,
	}); err != nil {
		h.log.Warn("lobby unavailable", zap.Error(err))
		h.conn.Close(websocket.StatusTryAgainLater, "relay shutting down")
		return
	}

	var res lobby.JoinResult
	select {
	case res = <-reply:
	case <-h.lobby.Done():
		return
	case <-ctx.Done():
		return
	}

	if res.Err != nil {
		h.reject(ctx, join.Name, res.Err)
		return
	}

	log := h.log.With(zap.String("player", join.Name))
	for _, m := range res.Greeting {
		if err := h.write(ctx, m); err != nil {
			log.Info("write greeting", zap.Error(err))
			return
		}
	}

	go h.writeLoop(ctx, cancel, out, log)
	if h.opts.PingInterval > 0 {
		go h.heartbeat(ctx, cancel, log)
	}
	h.readLoop(ctx, join.Name, log)
}

// handshake reads exactly one record, which must be a Join.
func (h *handler) handshake(ctx context.Context) (protocol.Join, bool) {
	hctx, cancel := context.WithTimeout(ctx, h.opts.HandshakeTimeout)
	defer cancel()

	_, data, err := h.conn.Read(hctx)
	if err != nil {
		h.log.Info("handshake read", zap.Error(err))
		return protocol.Join{}, false
	}

	msg, err := h.codec.Decode(data)
	if err != nil {
		h.log.Info("handshake decode", zap.Error(err))
		h.conn.Close(websocket.StatusPolicyViolation, "expected join")
		return protocol.Join{}, false
	}
	join, ok := msg.(protocol.Join)
	if !ok {
		h.log.Info("handshake: first record not a join", zap.String("tag", string(msg.Tag())))
		h.conn.Close(websocket.StatusPolicyViolation, "expected join")
		return protocol.Join{}, false
	}
	return join, true
}

func (h *handler) reject(ctx context.Context, name string, err error) {
	if !errors.Is(err, match.ErrNameTaken) {
		h.conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	if werr := h.write(ctx, protocol.SystemChat(protocol.NameExists)); werr != nil {
		h.log.Info("write name exists", zap.String("player", name), zap.Error(werr))
		return
	}
	h.conn.Close(websocket.StatusNormalClosure, protocol.NameExists)
}

func (h *handler) write(ctx context.Context, m protocol.Message) error {
	payload, err := h.codec.Encode(m)
	if err != nil {
		return err
	}
	typ := websocket.MessageText
	if h.codec.Binary() {
		typ = websocket.MessageBinary
	}
	wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return h.conn.Write(wctx, typ, payload)
}

// writeLoop drains the outbox. A closed outbox means the lobby let go of us.
func (h *handler) writeLoop(ctx context.Context, cancel context.CancelFunc, out <-chan protocol.Message, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-out:
			if !ok {
				log.Info("outbox closed by lobby")
				h.conn.Close(websocket.StatusGoingAway, "dropped")
				cancel()
				return
			}
			if err := h.write(ctx, m); err != nil {
				log.Info("write", zap.String("tag", string(m.Tag())), zap.Error(err))
				h.conn.CloseNow()
				cancel()
				return
			}
		}
	}
}

func (h *handler) heartbeat(ctx context.Context, cancel context.CancelFunc, log *zap.Logger) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := h.conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.Info("heartbeat failed", zap.Error(err))
				h.conn.CloseNow()
				cancel()
				return
			}
		}
	}
}

func (h *handler) readLoop(ctx context.Context, name string, log *zap.Logger) {
	for {
		_, data, err := h.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("client closed")
			default:
				log.Info("read", zap.Error(err))
			}
			return
		}

		msg, err := h.codec.Decode(data)
		if err != nil {
			// one bad record never costs the connection
			log.Warn("dropping record", zap.Error(err))
			continue
		}
		if err := h.lobby.Send(ctx, lobby.FromClient{Name: name, Msg: msg}); err != nil {
			return
		}
	}
}

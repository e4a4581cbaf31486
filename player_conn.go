package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"neonrange/server/internal/game"
	"neonrange/server/internal/input"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/replay"
)

const writeWait = 5 * time.Second

// frameMailbox keeps only the newest snapshot for a connection. Events from frames that
// were superseded before the writer caught up are carried forward so none are lost.
type frameMailbox struct {
	mu      sync.Mutex
	pending *game.Snapshot
	notify  chan struct{}
}

func newFrameMailbox() *frameMailbox {
	return &frameMailbox{notify: make(chan struct{}, 1)}
}

// PublishFrame implements game.FrameSink without ever blocking the simulation loop.
func (m *frameMailbox) PublishFrame(snapshot game.Snapshot) {
	m.mu.Lock()
	if previous := m.pending; previous != nil {
		//1.- Merge into fresh slices; the snapshot is shared with other sinks.
		if len(previous.Events) > 0 {
			events := make([]game.Event, 0, len(previous.Events)+len(snapshot.Events))
			events = append(events, previous.Events...)
			snapshot.Events = append(events, snapshot.Events...)
		}
		if snapshot.Columns == nil {
			snapshot.Columns = previous.Columns
		}
	}
	m.pending = &snapshot
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take hands the pending snapshot to the writer.
func (m *frameMailbox) Take() (game.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return game.Snapshot{}, false
	}
	snapshot := *m.pending
	m.pending = nil
	return snapshot, true
}

// playerConn binds one websocket to one session runner.
type playerConn struct {
	id       string
	subject  string
	remote   string
	conn     *websocket.Conn
	server   *Server
	session  *game.Session
	runner   *game.Runner
	recorder *replay.Recorder
	mailbox  *frameMailbox
	log      *logging.Logger

	unsubscribe []func()
	done        chan struct{}
	closeOnce   sync.Once
	endOnce     sync.Once
}

func newPlayerConn(server *Server, conn *websocket.Conn, runner *game.Runner, subject, remote string, logger *logging.Logger) *playerConn {
	return &playerConn{
		id:      runner.Session().ID(),
		subject: subject,
		remote:  remote,
		conn:    conn,
		server:  server,
		session: runner.Session(),
		runner:  runner,
		mailbox: newFrameMailbox(),
		log:     logger,
		done:    make(chan struct{}),
	}
}

// shutdown sends a close frame and tears the socket down. Safe from any goroutine.
func (p *playerConn) shutdown(code int, reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		deadline := time.Now().Add(writeWait)
		_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = p.conn.Close()
	})
}

func (p *playerConn) writeMessage(message game.ServerMessage) error {
	//1.- Every message carries the server clock so clients can stamp commands in server time.
	message.ServerTimeMs = p.server.now().UnixMilli()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteJSON(message)
}

func (p *playerConn) readLoop() {
	defer p.server.wg.Done()
	defer p.server.endSession(p)

	cfg := p.server.cfg
	if cfg.MaxPayloadBytes > 0 {
		p.conn.SetReadLimit(cfg.MaxPayloadBytes)
	}
	//1.- Every pong extends the read deadline so silent peers are eventually dropped.
	if cfg.PingInterval > 0 {
		wait := cfg.PingInterval * 2
		_ = p.conn.SetReadDeadline(time.Now().Add(wait))
		p.conn.SetPongHandler(func(string) error {
			return p.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	for {
		_, payload, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Warn("websocket read failed", logging.Error(err))
			}
			return
		}
		if p.handleMessage(payload) {
			p.shutdown(websocket.ClosePolicyViolation, "too many invalid commands")
			return
		}
	}
}

// handleMessage decodes, gates, validates and enqueues one client message. It reports
// whether the client should be disconnected.
func (p *playerConn) handleMessage(payload []byte) bool {
	envelope, err := input.Decode(payload)
	if err != nil {
		p.log.Debug("dropping malformed command", logging.Error(err))
		return false
	}
	//1.- Sequence, freshness and rate checks run before any payload inspection.
	if decision := p.server.gate.Evaluate(envelope.Frame(p.id)); !decision.Accepted {
		p.log.Debug("input gate dropped command",
			logging.String("reason", decision.Reason.String()),
			logging.String("kind", string(envelope.Command.Kind)),
			logging.Int64("seq", int64(envelope.Seq)),
		)
		return false
	}
	//2.- Bounds checks escalate repeated abuse into cooldowns and disconnects.
	verdict := p.server.validator.Validate(p.id, envelope.Command)
	if !verdict.Accepted {
		fields := []logging.Field{
			logging.String("reason", string(verdict.Reason)),
			logging.String("kind", string(envelope.Command.Kind)),
		}
		if verdict.Cooldown > 0 {
			fields = append(fields, logging.Duration("cooldown", verdict.Cooldown))
		}
		if verdict.Warn || verdict.Disconnect {
			p.log.Warn("command rejected", fields...)
		} else {
			p.log.Debug("command rejected", fields...)
		}
		return verdict.Disconnect
	}
	if !p.session.Enqueue(envelope.Command) {
		p.log.Warn("input buffer full, dropping command", logging.String("kind", string(envelope.Command.Kind)))
	}
	return false
}

func (p *playerConn) writeLoop() {
	defer p.server.wg.Done()

	var pings <-chan time.Time
	if interval := p.server.cfg.PingInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pings = ticker.C
	}
	for {
		select {
		case <-p.done:
			return
		case <-p.mailbox.notify:
			snapshot, ok := p.mailbox.Take()
			if !ok {
				continue
			}
			if err := p.writeMessage(game.FrameMessage(snapshot)); err != nil {
				p.log.Debug("frame write failed", logging.Error(err))
				p.shutdown(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-pings:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.log.Debug("ping failed", logging.Error(err))
				p.shutdown(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxPayloadBytes = 1 << 20
	sendBufferSize  = 64
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
	pingInterval    = 20 * time.Second
)

// Handler runs the agent-side work a Conn dispatches request frames to.
// RunStart is called once per run.start frame; it should call emit for
// every intermediate event and return the final result (or error) once the
// run completes or ctx is cancelled via a matching run.cancel. The Conn
// assigns ctx's lifetime to the run's request_id so RunCancel for the same
// request_id cancels it.
type Handler interface {
	RunStart(ctx context.Context, payload RunStartPayload, emit func(kind Kind, payload any) error) error
}

// Upgrader configures the websocket handshake used to accept RPC
// connections. Mirrors the control-plane upgrader shape used elsewhere in
// this codebase: permissive origin check, fixed buffer sizes.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn is one client's RPC frame session: a websocket connection plus the
// in-flight run bookkeeping needed to service run.cancel.
type Conn struct {
	id      string
	conn    *websocket.Conn
	handler Handler
	logger  *slog.Logger

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	runsMu sync.Mutex
	runs   map[string]context.CancelFunc
}

// Serve upgrades r into a websocket and services RPC frames on it until the
// connection closes or ctx is done. It blocks until the session ends.
func Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, handler Handler, logger *slog.Logger) error {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	sessCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		id:      uuid.NewString(),
		conn:    conn,
		handler: handler,
		logger:  logger,
		send:    make(chan []byte, sendBufferSize),
		ctx:     sessCtx,
		cancel:  cancel,
		runs:    make(map[string]context.CancelFunc),
	}
	c.run()
	return nil
}

func (c *Conn) run() {
	defer c.close()
	go c.writeLoop()
	c.readLoop()
}

func (c *Conn) close() {
	c.cancel()
	c.runsMu.Lock()
	for _, cancel := range c.runs {
		cancel()
	}
	c.runsMu.Unlock()
	close(c.send)
	_ = c.conn.Close()
}

func (c *Conn) readLoop() {
	c.conn.SetReadLimit(maxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handleLine(data)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleLine(data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		c.enqueue(NewErrorFrame("", err.Error()))
		return
	}

	switch frame.Kind {
	case KindCapabilitiesRequest:
		resp, err := NewCapabilitiesResponse(frame.RequestID)
		if err != nil {
			c.enqueue(NewErrorFrame(frame.RequestID, err.Error()))
			return
		}
		c.enqueue(resp)

	case KindRunStart:
		payload, err := DecodeRunStart(frame)
		if err != nil {
			c.enqueue(NewErrorFrame(frame.RequestID, err.Error()))
			return
		}
		go c.runStart(frame.RequestID, payload)

	case KindRunCancel:
		payload, err := DecodeRunCancel(frame)
		if err != nil {
			c.enqueue(NewErrorFrame(frame.RequestID, err.Error()))
			return
		}
		c.cancelRun(payload.RunID)
	}
}

func (c *Conn) runStart(requestID string, payload RunStartPayload) {
	runCtx, cancel := context.WithCancel(c.ctx)
	c.runsMu.Lock()
	c.runs[requestID] = cancel
	c.runsMu.Unlock()
	defer func() {
		cancel()
		c.runsMu.Lock()
		delete(c.runs, requestID)
		c.runsMu.Unlock()
	}()

	emit := func(kind Kind, data any) error {
		f, err := newFrame(requestID, kind, data)
		if err != nil {
			return err
		}
		return c.enqueue(f)
	}

	if err := c.handler.RunStart(runCtx, payload, emit); err != nil {
		c.enqueue(NewErrorFrame(requestID, err.Error()))
	}
}

func (c *Conn) cancelRun(runID string) {
	c.runsMu.Lock()
	cancel, ok := c.runs[runID]
	c.runsMu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Conn) enqueue(frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Warn("rpc: failed to marshal frame", "error", err)
		return err
	}
	if len(data) > maxPayloadBytes {
		return fmt.Errorf("payload too large")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

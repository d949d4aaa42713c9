package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	WriteTimeout time.Duration
	ReadLimit    int64
	PongWait     time.Duration
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// WebSocket serializes writes on one gorilla connection.
type WebSocket struct {
	*websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *slog.Logger
	wmu    sync.Mutex
	once   sync.Once
}

func NewWebSocket(parent context.Context, log *slog.Logger, conn *websocket.Conn, opts Options) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, opts: opts.withDefaults(), log: log}
}

// Done is closed once the socket is closed from either side.
func (w *WebSocket) Done() <-chan struct{} { return w.ctx.Done() }

func (w *WebSocket) WriteMessage(data []byte) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteTimeout))
}

// ReadLoop blocks until the peer goes away, the pong deadline passes or the
// socket is closed locally.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()

	// Configure Read Limits (Protects against memory exhaustion)
	w.Conn.SetReadLimit(w.opts.ReadLimit)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn("ws - read loop - unexpected close", "err", err)
			}
			return
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.once.Do(func() {
		w.cancel()
		_ = w.Conn.Close()
	})
}

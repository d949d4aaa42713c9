package ws

import (
	"context"
	"qrdine/internal/core/domain"
	"sync"
	"time"
)

// RuntimeClient is one live connection. Send only enqueues; a dedicated
// goroutine performs the network writes.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, id string) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     id,
		out:    make(chan []byte, ws.opts.SendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string { return c.id }

// Send never blocks: a full buffer drops the message for this client only.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return domain.ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
		return domain.ErrClientBackpressure
	}
}

// Close is safe to call more than once and from any goroutine. The out channel
// is never closed so a concurrent Send cannot panic.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	ping := time.NewTicker(c.ws.opts.PongWait * 9 / 10)
	defer ping.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ws.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		case <-ping.C:
			if err := c.ws.WritePing(); err != nil {
				return
			}
		}
	}
}

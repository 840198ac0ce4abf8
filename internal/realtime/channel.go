package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Channel is one viewer's duplex connection to a room's realtime endpoint.
// It never reconnects on its own: when the connection drops, Ready flips
// false and stays false until the owning session decides to dial again.
type Channel struct {
	conn   *websocket.Conn
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ready  bool
	last   Signal
	closed bool
}

// Dial connects to url and starts delivering every inbound message to
// onSignal, timestamped at arrival. onSignal runs on the channel's reader
// goroutine; keep it cheap (the session just forwards into its inbox).
func Dial(ctx context.Context, url string, onSignal func(Signal), log *zap.Logger) (*Channel, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		conn:   conn,
		log:    log,
		ctx:    runCtx,
		cancel: cancel,
		ready:  true,
	}
	go c.readLoop(onSignal)
	return c, nil
}

func (c *Channel) readLoop(onSignal func(Signal)) {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.mu.Lock()
			c.ready = false
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Info("realtime channel lost", zap.Error(err))
			}
			return
		}

		sig := Signal{Payload: string(data), Timestamp: time.Now()}
		c.mu.Lock()
		c.last = sig
		c.mu.Unlock()
		if onSignal != nil {
			onSignal(sig)
		}
	}
}

// Ready reports whether the connection is currently established.
func (c *Channel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Last returns the most recent inbound signal, zero if none arrived yet.
func (c *Channel) Last() Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Send writes a payload to the peer endpoint.
func (c *Channel) Send(ctx context.Context, payload string) error {
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, []byte(payload))
}

// Close tears the connection down. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.ready = false
	c.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

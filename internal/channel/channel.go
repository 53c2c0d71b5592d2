package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

var ErrNotConnected = errors.New("channel not connected")
var ErrClosed = errors.New("channel closed")

// Event is one of EventConnected, EventMessage or EventTransportError.
// Events arrive in the order they happened on the wire.
type Event interface{ isEvent() }

// EventConnected fires after every successful dial. Conn increases by one
// per connection, so a consumer can tell a reconnect from the first connect.
type EventConnected struct{ Conn uint64 }

type EventMessage struct {
	Conn uint64
	Type string
	Data json.RawMessage
}

// EventTransportError reports a failed dial or a dropped connection. The
// channel keeps reconnecting on its own.
type EventTransportError struct {
	Conn uint64
	Err  error
}

func (EventConnected) isEvent()      {}
func (EventMessage) isEvent()        {}
func (EventTransportError) isEvent() {}

type Channel interface {
	Events() <-chan Event
	Send(ctx context.Context, msgType string, payload any) error
	Close() error
}

type Option func(*WebSocket)

func WithLogger(l *zap.Logger) Option {
	return func(w *WebSocket) { w.log = l }
}

// WithRetryInterval sets the first and the largest wait between dials.
func WithRetryInterval(initial, maxWait time.Duration) Option {
	return func(w *WebSocket) { w.initialWait, w.maxWait = initial, maxWait }
}

// WebSocket is a Channel that redials forever until closed.
type WebSocket struct {
	url         string
	log         *zap.Logger
	initialWait time.Duration
	maxWait     time.Duration

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	gen     uint64
	lastErr error
}

// Dial starts connecting in the background and returns immediately. The
// first EventConnected reports when the channel is usable.
func Dial(ctx context.Context, url string, opts ...Option) *WebSocket {
	w := &WebSocket{
		url:         url,
		log:         zap.NewNop(),
		initialWait: 250 * time.Millisecond,
		maxWait:     10 * time.Second,
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return w
}

func (w *WebSocket) Events() <-chan Event { return w.events }

func (w *WebSocket) Send(ctx context.Context, msgType string, payload any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, types.Message[any]{Type: msgType, Data: payload})
}

// Close stops reconnecting, closes the live connection and waits for the
// event stream to end.
func (w *WebSocket) Close() error {
	w.cancel()

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	var err error
	if conn != nil {
		err = ignoreClosed(conn.Close(websocket.StatusNormalClosure, "bye"))
	}
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return multierr.Append(err, w.lastErr)
}

func (w *WebSocket) run(ctx context.Context) {
	defer close(w.events)
	defer close(w.done)

	for {
		conn, err := w.dial(ctx)
		if err != nil {
			return
		}
		gen := w.attach(conn)
		w.log.Info("channel connected", zap.String("url", w.url), zap.Uint64("conn", gen))
		w.emit(ctx, EventConnected{Conn: gen})

		err = w.readLoop(ctx, conn, gen)
		w.detach(conn)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("channel dropped", zap.Uint64("conn", gen), zap.Error(err))
		w.emit(ctx, EventTransportError{Conn: gen, Err: err})
	}
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialWait
	b.MaxInterval = w.maxWait
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	op := func() error {
		c, _, err := websocket.Dial(ctx, w.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.log.Warn("channel dial failed", zap.String("url", w.url), zap.Duration("retry_in", wait), zap.Error(err))
		w.emit(ctx, EventTransportError{Conn: w.generation(), Err: err})
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) error {
	for {
		var env types.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		if !w.emit(ctx, EventMessage{Conn: gen, Type: env.Type, Data: env.Data}) {
			return ctx.Err()
		}
	}
}

func (w *WebSocket) emit(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *WebSocket) attach(conn *websocket.Conn) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = conn
	w.gen++
	return w.gen
}

func (w *WebSocket) detach(conn *websocket.Conn) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()

	if err := ignoreClosed(conn.CloseNow()); err != nil {
		w.mu.Lock()
		w.lastErr = multierr.Append(w.lastErr, err)
		w.mu.Unlock()
	}
}

func (w *WebSocket) generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 {
		return nil
	}
	return err
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/vhoang/loto-live/pkg/protocol"
)

// WSDialer dials the server over websocket and completes the welcome
// handshake before handing the connection to the session.
type WSDialer struct {
	// HandshakeTimeout bounds the wait for the welcome frame.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

func (d *WSDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hsTimeout := d.HandshakeTimeout
	if hsTimeout <= 0 {
		hsTimeout = 10 * time.Second
	}
	wTimeout := d.WriteTimeout
	if wTimeout <= 0 {
		wTimeout = 3 * time.Second
	}

	ws, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	hsCtx, cancel := context.WithTimeout(ctx, hsTimeout)
	_, data, err := ws.Read(hsCtx)
	cancel()
	if err != nil {
		ws.Close(websocket.StatusProtocolError, "no welcome")
		return nil, fmt.Errorf("read welcome: %w", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != WelcomeEvent {
		ws.Close(websocket.StatusProtocolError, "bad welcome")
		return nil, fmt.Errorf("expected %s frame, got %q", WelcomeEvent, env.Event)
	}
	var welcome Welcome
	if err := json.Unmarshal(env.Data, &welcome); err != nil || welcome.ID == "" {
		ws.Close(websocket.StatusProtocolError, "bad welcome")
		return nil, fmt.Errorf("welcome payload: missing id")
	}

	readCtx, readCancel := context.WithCancel(context.Background())
	c := &wsConn{
		id:           welcome.ID,
		ws:           ws,
		inbox:        make(chan protocol.Envelope, 32),
		writeTimeout: wTimeout,
		readCancel:   readCancel,
		log:          log,
	}
	go c.readLoop(readCtx)

	log.Debug("channel connected", zap.String("conn_id", welcome.ID))
	return c, nil
}

type wsConn struct {
	id           string
	ws           *websocket.Conn
	inbox        chan protocol.Envelope
	writeTimeout time.Duration
	readCancel   context.CancelFunc
	log          *zap.Logger

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Inbox() <-chan protocol.Envelope { return c.inbox }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Send(ctx context.Context, env protocol.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.ws.Write(wctx, websocket.MessageText, payload)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.readCancel()
		c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
	return nil
}

func (c *wsConn) readLoop(ctx context.Context) {
	defer close(c.inbox)
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				// clean disconnect, no reason recorded
			default:
				if ctx.Err() == nil {
					c.mu.Lock()
					c.err = err
					c.mu.Unlock()
					c.log.Debug("channel read failed", zap.Error(err))
				}
			}
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		c.inbox <- env
	}
}

// Package transport owns the duplex channel under the session layer. The
// session consumes only its connect/disconnect signals: a successful Dial is
// the connect signal (carrying the server-assigned identity), a Dial error
// is connect_error, and a closed Inbox with Err set is disconnect.
package transport

import (
	"context"

	"github.com/vhoang/loto-live/pkg/protocol"
)

// WelcomeEvent is the first frame the server writes after accepting a
// connection. Its payload carries the identity the session binds to.
const WelcomeEvent = "connect"

type Welcome struct {
	ID string `json:"id"`
}

// Conn is one live channel. Inbox delivers inbound envelopes in arrival
// order and is closed on disconnect; Err reports the disconnect reason
// afterwards (nil for a clean close).
type Conn interface {
	ID() string
	Send(ctx context.Context, env protocol.Envelope) error
	Inbox() <-chan protocol.Envelope
	Err() error
	Close() error
}

// Dialer opens a channel to an endpoint. Handshake, encryption and retry
// policy live behind this interface, not in the session.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

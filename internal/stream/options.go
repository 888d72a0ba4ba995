package stream

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8 * 1024 * 1024

	// Send buffer size per connection.
	sendBufferSize = 64
)

// Options configures a Client.
type Options struct {
	// ConnectionURL is the websocket endpoint, e.g. wss://host/api/v4/websocket.
	ConnectionURL string

	// PingInterval is how often pings are sent. Reads time out after twice
	// this interval without a pong.
	PingInterval time.Duration

	MinReconnectDelay time.Duration
	MaxReconnectDelay time.Duration

	// ReliableWebSockets resumes a dropped connection by id and sequence
	// number instead of forcing a full resync.
	ReliableWebSockets bool

	// Dialer overrides the default websocket dialer.
	Dialer *websocket.Dialer
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PingInterval <= 0 {
		out.PingInterval = 30 * time.Second
	}
	if out.MinReconnectDelay <= 0 {
		out.MinReconnectDelay = 3 * time.Second
	}
	if out.MaxReconnectDelay <= 0 {
		out.MaxReconnectDelay = 5 * time.Minute
	}
	if out.MaxReconnectDelay < out.MinReconnectDelay {
		out.MaxReconnectDelay = out.MinReconnectDelay
	}
	if out.Dialer == nil {
		out.Dialer = &websocket.Dialer{
			HandshakeTimeout:  30 * time.Second,
			EnableCompression: true,
		}
	}
	return out
}

// backoff returns the delay before the given reconnect attempt.
func (o *Options) backoff(failCount int) time.Duration {
	if failCount <= 1 {
		return o.MinReconnectDelay
	}
	d := o.MinReconnectDelay
	for i := 1; i < failCount; i++ {
		d *= 2
		if d >= o.MaxReconnectDelay {
			return o.MaxReconnectDelay
		}
	}
	return d
}

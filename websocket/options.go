package websocket

import "time"

const (
	defaultGracePeriod = 5 * time.Second
	defaultSendQueue   = 256
)

// config holds the tunables every [Option] mutates. Built up by Accept
// and Connect before the manager goroutine starts.
type config struct {
	logger      Logger
	gracePeriod time.Duration
	sendQueue   int
}

func defaultConfig() config {
	return config{
		logger:      nopLogger(),
		gracePeriod: defaultGracePeriod,
		sendQueue:   defaultSendQueue,
	}
}

// Option configures a [Conn] at construction time (Accept or Connect).
type Option func(*config)

// WithLogger attaches a [Logger] the connection uses for structured,
// per-connection diagnostic events. The default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithGracePeriod bounds how long the manager waits for the peer's Close
// frame after it has sent its own, before it tears the stream down
// unilaterally (spec.md §4.D's closing handshake). The default is 5s.
func WithGracePeriod(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.gracePeriod = d
		}
	}
}

// WithSendQueue sets how many outbound application messages may wait in
// the queue for the manager; a [Conn.Send] beyond that blocks before
// enqueuing, and every Send still waits until its message has been
// written. The default is 256.
func WithSendQueue(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.sendQueue = n
		}
	}
}

package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Server. Options panic on invalid values so that a
// misconfigured server fails at construction.
type Option func(*config)

func positive(name string, d time.Duration) {
	if d <= 0 {
		panic(name + ": duration must be > 0")
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	positive("WithReadTimeout", d)
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	positive("WithWriteTimeout", d)
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	positive("WithIdleTimeout", d)
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds graceful shutdown. Default 5s.
func WithShutdownTimeout(d time.Duration) Option {
	positive("WithShutdownTimeout", d)
	return func(c *config) { c.shutdownTimeout = d }
}

// WithReadyTimeout bounds the wait for the ready gate. Without it Run waits
// until its context ends.
func WithReadyTimeout(d time.Duration) Option {
	positive("WithReadyTimeout", d)
	return func(c *config) { c.readyTimeout = d }
}

// WithReadyGate makes Run hold off listening until ready is closed, for
// example until the session store has initialized its storage.
func WithReadyGate(ready <-chan struct{}) Option {
	if ready == nil {
		panic("WithReadyGate: nil channel")
	}
	return func(c *config) { c.ready = ready }
}

// WithServer runs srv instead of a fresh http.Server. Its Handler is
// replaced; address and timeouts already set on it are kept.
func WithServer(srv *http.Server) Option {
	if srv == nil {
		panic("WithServer: nil server")
	}
	return func(c *config) { c.server = srv }
}

// WithLogger sets the logger passed to hooks. Nil discards logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStartHook runs h once the listener is open, before serving.
func WithStartHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStartHook: nil hook")
	}
	return func(c *config) { c.startHooks = append(c.startHooks, h) }
}

// WithStopHook runs h after graceful shutdown.
func WithStopHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStopHook: nil hook")
	}
	return func(c *config) { c.stopHooks = append(c.stopHooks, h) }
}

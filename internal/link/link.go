// Package link maintains the TCP connection to the robot controller's script server.
//
// The controller speaks a line-oriented text protocol: each command is one
// line terminated by CRLF, and it may or may not answer. A Link owns exactly
// one connection and is driven from a single goroutine; only Close, Connected
// and Stats are safe to call from elsewhere.
package link

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Terminator ends every command line.
const Terminator = "\r\n"

// ErrClosed is returned when writing without an open connection.
var ErrClosed = errors.New("link: connection is closed")

// Config holds connection parameters.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Backoff        time.Duration
	NoDelay        bool
	ReplyMaxBytes  int
}

// DefaultConfig targets a controller running on the local machine.
func DefaultConfig() Config {
	return Config{
		Address:        "127.0.0.1:5000",
		ConnectTimeout: 3 * time.Second,
		WriteTimeout:   3 * time.Second,
		Backoff:        1500 * time.Millisecond,
		NoDelay:        true,
		ReplyMaxBytes:  4096,
	}
}

// DialFunc opens a connection. It matches net.DialTimeout.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Reply is the controller's answer to a command. OK is false when nothing
// arrived before the deadline; that is not an error.
type Reply struct {
	Text string
	OK   bool
}

// Stats counts link activity.
type Stats struct {
	DialAttempts uint64
	Connects     uint64
	Reconnects   uint64
	Sends        uint64
	Failures     uint64
	Replies      uint64
}

// Option customizes a Link.
type Option func(*Link)

// WithDialFunc replaces the dialer.
func WithDialFunc(fn DialFunc) Option {
	return func(l *Link) { l.dial = fn }
}

// WithSleep replaces the function used to wait between connection attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(l *Link) { l.sleep = fn }
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) { l.log = logger }
}

// Link is a self-healing connection to the controller.
type Link struct {
	cfg   Config
	dial  DialFunc
	sleep func(time.Duration)
	log   *slog.Logger

	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	connected atomic.Bool

	dialAttempts atomic.Uint64
	connects     atomic.Uint64
	reconnects   atomic.Uint64
	sends        atomic.Uint64
	failures     atomic.Uint64
	replies      atomic.Uint64
}

// New creates a disconnected Link. Call Connect before the first send, or
// let the first Send establish the connection.
func New(cfg Config, opts ...Option) *Link {
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.ReplyMaxBytes <= 0 {
		cfg.ReplyMaxBytes = def.ReplyMaxBytes
	}

	l := &Link{
		cfg:   cfg,
		dial:  net.DialTimeout,
		sleep: time.Sleep,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect blocks until a connection is established, retrying forever with a
// fixed backoff. Each failed attempt is logged. It returns without a
// connection once Close has been called.
func (l *Link) Connect() {
	l.closeConn()

	for attempt := 1; ; attempt++ {
		if l.isClosed() {
			return
		}
		l.dialAttempts.Add(1)

		conn, err := l.dial("tcp", l.cfg.Address, l.cfg.ConnectTimeout)
		if err == nil {
			if tcp, ok := conn.(*net.TCPConn); ok && l.cfg.NoDelay {
				if err := tcp.SetNoDelay(true); err != nil {
					l.log.Debug("arc: set TCP_NODELAY failed", "error", err)
				}
			}
			if !l.adopt(conn) {
				conn.Close()
				l.log.Debug("arc: link closed while connecting", "address", l.cfg.Address)
				return
			}
			l.connects.Add(1)
			l.log.Info("arc: connected", "address", l.cfg.Address, "attempts", attempt)
			return
		}

		l.log.Warn("arc: connect failed, retrying",
			"address", l.cfg.Address,
			"attempt", attempt,
			"error", err,
			"backoff", l.cfg.Backoff,
		)
		l.sleep(l.cfg.Backoff)
	}
}

// Send writes msg followed by the line terminator. When the write fails the
// link reconnects (blocking until the controller is reachable) and retries the
// write exactly once. A second failure is returned to the caller.
func (l *Link) Send(msg string) error {
	if l.isClosed() {
		return ErrClosed
	}
	data := []byte(msg + Terminator)

	err := l.write(data)
	if err == nil {
		l.sends.Add(1)
		return nil
	}

	l.log.Warn("arc: send failed, reconnecting", "error", err)
	l.reconnects.Add(1)
	l.Connect()

	if err := l.write(data); err != nil {
		l.failures.Add(1)
		l.closeConn()
		return fmt.Errorf("link: send after reconnect: %w", err)
	}

	l.sends.Add(1)
	return nil
}

// SendAndAwaitReply sends msg and then waits up to timeout for an answer of
// at most ReplyMaxBytes. A missing answer yields a Reply with OK false.
func (l *Link) SendAndAwaitReply(msg string, timeout time.Duration) (Reply, error) {
	if err := l.Send(msg); err != nil {
		return Reply{}, err
	}
	return l.readReply(timeout), nil
}

// Close drops the connection for good. A Connect in progress on another
// goroutine gives up, and a connection it dials late is closed rather than
// kept. Later sends fail with ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return l.closeConn()
}

func (l *Link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// adopt installs conn unless the link was closed meanwhile.
func (l *Link) adopt(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.conn = conn
	l.connected.Store(true)
	return true
}

func (l *Link) current() net.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Connected reports whether a connection is currently held.
func (l *Link) Connected() bool {
	return l.connected.Load()
}

// Address returns the controller address.
func (l *Link) Address() string {
	return l.cfg.Address
}

// Stats returns a snapshot of the link counters.
func (l *Link) Stats() Stats {
	return Stats{
		DialAttempts: l.dialAttempts.Load(),
		Connects:     l.connects.Load(),
		Reconnects:   l.reconnects.Load(),
		Sends:        l.sends.Load(),
		Failures:     l.failures.Load(),
		Replies:      l.replies.Load(),
	}
}

func (l *Link) write(data []byte) error {
	conn := l.current()
	if conn == nil {
		return ErrClosed
	}

	if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})

	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (l *Link) readReply(timeout time.Duration) Reply {
	conn := l.current()
	if conn == nil || timeout <= 0 {
		return Reply{}
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Reply{}
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, l.cfg.ReplyMaxBytes)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		// The peer went away; the next send reconnects up front.
		l.log.Debug("arc: reply read failed", "error", err)
		l.closeConn()
	}

	text := strings.TrimSpace(string(buf[:n]))
	if text == "" {
		return Reply{}
	}

	l.replies.Add(1)
	return Reply{Text: text, OK: true}
}

func (l *Link) closeConn() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.connected.Store(false)
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Package client is a synchronous FieldTrip buffer client. Every call is one
// request/response exchange over a single TCP connection; a Client serializes
// concurrent callers.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// Sentinel errors returned by client calls
var (
	// ErrNotConnected is returned before Connect, after Disconnect and after a
	// protocol fault closed the connection.
	ErrNotConnected = errors.NewStd("not connected to FieldTrip buffer")
	// ErrAlreadyConnected is returned by Connect on a connected client.
	ErrAlreadyConnected = errors.NewStd("already connected to FieldTrip buffer")
	// ErrUnavailable means the server has no header or no data for the request.
	ErrUnavailable = errors.NewStd("buffer has no matching header or data")
	// ErrRejected means the server answered a PUT or FLUSH with its error status.
	ErrRejected = errors.NewStd("request rejected by buffer")
	// ErrWaitFailed means WAIT_DAT was answered with WAIT_ERR: no header, a
	// header change, or the timeout elapsed before the thresholds were met.
	ErrWaitFailed = errors.NewStd("wait request failed")
	// ErrProtocol marks an unexpected status or malformed response. The
	// client has disconnected when it is returned.
	ErrProtocol = errors.NewStd("bad response from buffer server")
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 10 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithDialTimeout bounds Connect. Zero leaves only the context deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithIOTimeout sets the per-call read/write deadline. Wait calls add their
// own timeout on top. Zero disables the deadline.
func WithIOTimeout(d time.Duration) Option {
	return func(c *Client) { c.ioTimeout = d }
}

// WithMaxPayload caps the size of a response payload the client will read.
// Larger responses are a protocol fault. Zero removes the cap.
func WithMaxPayload(n uint32) Option {
	return func(c *Client) { c.maxPayload = n }
}

// WithLogger replaces the default client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client talks to one FieldTrip buffer server.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	addr string

	dialTimeout time.Duration
	ioTimeout   time.Duration
	maxPayload  uint32
	log         logger.Logger
}

// New returns a disconnected client.
func New(opts ...Option) *Client {
	c := &Client{
		dialTimeout: defaultDialTimeout,
		ioTimeout:   defaultIOTimeout,
		maxPayload:  fieldtrip.DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = GetLogger()
	}
	return c
}

// Connect dials host:port.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.New(err).
			Component("client").
			Category(errors.CategoryNetwork).
			NetworkContext(addr, c.dialTimeout).
			Context("operation", "connect").
			Build()
	}

	c.conn = conn
	c.addr = addr
	c.log.Debug("connected to buffer", logger.String("address", addr))
	return nil
}

// Disconnect closes the connection. It is a no-op on a disconnected client.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// IsConnected reports whether the client holds an open connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Addr returns the address of the last successful Connect.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.log.Debug("disconnected from buffer", logger.String("address", c.addr))
	return err
}

// exchange describes one request and the statuses it may legally get back.
type exchange struct {
	op       string
	cmd      fieldtrip.Command
	payload  []byte
	extra    time.Duration // added to the I/O deadline for waits
	ok       fieldtrip.Command
	rejected fieldtrip.Command
}

// errRejectedStatus is returned by roundTrip when the server answered with
// the exchange's rejected status. Callers map it to their public sentinel.
var errRejectedStatus = errors.NewStd("rejected status")

// roundTrip sends one request and, unless it is a NORESPONSE variant, reads
// and checks the reply. Transport and protocol faults close the connection.
func (c *Client) roundTrip(ctx context.Context, x exchange) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	conn := c.conn

	if err := conn.SetDeadline(c.deadline(ctx, x.extra)); err != nil {
		return nil, c.fatalLocked(x.op, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	started := time.Now()
	if err := fieldtrip.WriteMessage(conn, x.cmd, x.payload); err != nil {
		return nil, c.fatalLocked(x.op, c.ctxErr(ctx, err))
	}
	if x.cmd.NoResponse() {
		return nil, nil
	}

	msg, err := fieldtrip.ReadMessage(conn, c.maxPayload)
	if err != nil {
		return nil, c.fatalLocked(x.op, c.ctxErr(ctx, err))
	}

	c.log.Trace("buffer exchange",
		logger.String("request", x.cmd.String()),
		logger.String("status", msg.Command.String()),
		logger.Int("payload_bytes", len(msg.Payload)),
		logger.Duration("elapsed", time.Since(started)))

	switch msg.Command {
	case x.ok:
		return msg.Payload, nil
	case x.rejected:
		return nil, errRejectedStatus
	default:
		return nil, c.fatalLocked(x.op, fmt.Errorf("%w: %s answered with %s", ErrProtocol, x.cmd, msg.Command))
	}
}

// deadline combines the I/O timeout, the wait extension and the context deadline.
func (c *Client) deadline(ctx context.Context, extra time.Duration) time.Time {
	var d time.Time
	if c.ioTimeout > 0 {
		d = time.Now().Add(c.ioTimeout + extra)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// ctxErr prefers the context error when the context caused the I/O failure.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	// The socket deadline can fire a moment before the context timer does.
	if d, ok := ctx.Deadline(); ok && isTimeout(err) && !time.Now().Before(d) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// fatalLocked disconnects and wraps err with client context.
func (c *Client) fatalLocked(op string, err error) error {
	_ = c.closeLocked()

	category := errors.CategoryNetwork
	switch {
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		category = errors.CategoryTimeout
	case errors.Is(err, fieldtrip.ErrVersionMismatch), errors.Is(err, fieldtrip.ErrShortMessage),
		errors.Is(err, fieldtrip.ErrPayloadTooLarge), errors.Is(err, ErrProtocol):
		category = errors.CategoryProtocol
	}

	c.log.Warn("disconnecting after buffer fault",
		logger.String("operation", op),
		logger.String("address", c.addr),
		logger.Error(err))

	return errors.New(err).
		Component("client").
		Category(category).
		NetworkContext(c.addr, c.ioTimeout).
		Context("operation", op).
		Build()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// malformed disconnects after a response that could not be decoded.
func (c *Client) malformed(op string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalLocked(op, fmt.Errorf("%w: %w", ErrProtocol, err))
}

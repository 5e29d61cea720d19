// Package server implements the FieldTrip buffer server. Each accepted
// connection gets a goroutine that frames requests and writes replies; a single
// dispatch goroutine owns the header, sample ring and event store and applies
// requests one at a time. WAIT_DAT requests that cannot be answered at once are
// parked in a wait list and answered when data arrives, their timer fires, or
// the header changes, so one waiting client never stalls the others.
package server

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/internal/observability/metrics"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// ErrServerClosed is returned by Serve after Close and by Snapshot once the
// dispatcher has stopped.
var ErrServerClosed = errors.NewStd("buffer server closed")

// ErrAlreadyServing is returned when Serve is called twice.
var ErrAlreadyServing = errors.NewStd("buffer server already serving")

// Snapshot is a point-in-time view of the buffer.
type Snapshot struct {
	Header          *fieldtrip.Header // nil when no header is set
	Counts          fieldtrip.Counts
	RetainedSamples uint64
	RetainedEvents  int
	PendingWaits    int
	Connections     int
}

// Server is a FieldTrip buffer server.
type Server struct {
	cfg Config
	log logger.Logger
	rec metrics.BufferRecorder
	ln  net.Listener

	// Dispatcher inputs
	requests  chan request
	gone      chan *conn
	expired   chan uint64
	snapshots chan chan Snapshot

	// Dispatcher-owned state
	state *bufferState
	waits *waitList

	quit         chan struct{} // closed by stop
	dispatchDone chan struct{} // closed when the dispatcher has returned
	stopOnce     sync.Once
	serving      atomic.Bool

	mu      sync.Mutex
	conns   map[*conn]struct{}
	closing bool
	cause   error
	connWG  sync.WaitGroup
}

// New binds the listener and starts the dispatcher. The server accepts
// connections once Serve is called and must be released with Close.
func New(cfg Config, opts ...Option) (*Server, error) {
	cfg.applyDefaults()

	s := &Server{
		cfg:          cfg,
		requests:     make(chan request),
		gone:         make(chan *conn),
		expired:      make(chan uint64),
		snapshots:    make(chan chan Snapshot),
		state:        newBufferState(cfg.Window, cfg.MaxEvents),
		waits:        newWaitList(),
		quit:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
		conns:        make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.rec == nil {
		s.rec = metrics.NewNoOpRecorder()
	}

	ln, err := listen(cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.ln = ln

	go s.dispatch()

	s.log.Info("buffer server listening",
		logger.String("address", ln.Addr().String()),
		logger.Float64("window_seconds", cfg.Window),
		logger.Int("max_events", cfg.MaxEvents),
		logger.Bool("keepalive", cfg.KeepAlive))
	return s, nil
}

// listen binds cfg.Host:cfg.Port, trying the next PortSearch ports in turn
// when the port cannot be bound.
func listen(cfg Config, log logger.Logger) (net.Listener, error) {
	attempts := cfg.PortSearch + 1
	if cfg.Port == 0 {
		attempts = 1
	}

	var lastErr error
	for i := range attempts {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				log.Info("configured port busy, using next free port",
					logger.Int("configured", cfg.Port),
					logger.Int("port", cfg.Port+i))
			}
			return ln, nil
		}
		lastErr = err
	}

	return nil, errors.New(lastErr).
		Component("server").
		Category(errors.CategoryNetwork).
		Context("host", cfg.Host).
		Context("port", cfg.Port).
		Context("port_search", cfg.PortSearch).
		Build()
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled, Close is called, or a
// connection faults while keepalive is off. It returns nil on a requested
// shutdown and the fault otherwise. All connection goroutines have exited
// when Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if !s.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	stopWatch := context.AfterFunc(ctx, func() { s.stop(nil) })
	defer stopWatch()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.connWG.Wait()
				return s.stopCause()
			default:
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			acceptErr := errors.New(err).
				Component("server").
				Category(errors.CategoryNetwork).
				Context("operation", "accept").
				Build()
			s.stop(acceptErr)
			s.connWG.Wait()
			return s.stopCause()
		}
		s.track(nc)
	}
}

// Close stops the listener, fails pending waits, closes every connection and
// waits for all goroutines to exit. It is safe to call more than once.
func (s *Server) Close() error {
	s.stop(nil)
	s.connWG.Wait()
	return nil
}

// stop shuts the server down once. Pending waits are answered before the
// connections are unblocked, so waiting clients see WAIT_ERR.
func (s *Server) stop(cause error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.cause = cause
		s.mu.Unlock()

		close(s.quit)
		_ = s.ln.Close()
		<-s.dispatchDone

		now := time.Now()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.nc.SetReadDeadline(now)
			_ = c.nc.SetWriteDeadline(now.Add(shutdownWriteGrace))
		}
		s.mu.Unlock()

		if cause != nil {
			s.log.Error("buffer server stopped after fault", logger.Error(cause))
		} else {
			s.log.Info("buffer server stopped")
		}
	})
}

func (s *Server) stopCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// track registers an accepted connection and starts its goroutine.
func (s *Server) track(nc net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		_ = nc.Close()
		return
	}

	c := newConn(s, nc)
	s.conns[c] = struct{}{}
	s.rec.ConnectionOpened()
	s.connWG.Add(1)
	go func() {
		defer s.connWG.Done()
		c.serve()
	}()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) connectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Snapshot returns the current header and counters as seen by the dispatcher.
func (s *Server) Snapshot() (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	select {
	case s.snapshots <- ch:
	case <-s.dispatchDone:
		return Snapshot{}, ErrServerClosed
	}
	return <-ch, nil
}

// dispatch is the only goroutine that reads or writes buffer state.
func (s *Server) dispatch() {
	defer close(s.dispatchDone)

	for {
		select {
		case req := <-s.requests:
			s.handle(req)
		case c := <-s.gone:
			s.dropWaits(c)
		case id := <-s.expired:
			s.expire(id)
		case ch := <-s.snapshots:
			ch <- s.snapshot()
		case <-s.quit:
			s.failWaits(errShuttingDown)
			return
		}
	}
}

func (s *Server) handle(req request) {
	cmd := req.msg.Command
	s.rec.ObservePayload(metrics.DirectionIn, len(req.msg.Payload))

	if cmd == fieldtrip.WaitDat {
		s.wait(req)
		return
	}

	out := s.state.apply(cmd.Acknowledged(), req.msg.Payload)
	s.respond(req.conn, cmd, req.received, out)

	switch out.effect {
	case effectGrew:
		s.releaseSatisfied()
	case effectReset:
		s.failWaits(errHeaderChanged)
	}

	c := s.state.counts()
	s.rec.SetCounts(c.NSamples, c.NEvents, s.state.retainedSamples())
}

// respond records the outcome and hands the reply to the connection.
// NORESPONSE commands are applied and recorded but never answered.
func (s *Server) respond(c *conn, cmd fieldtrip.Command, received time.Time, out outcome) {
	op := cmd.String()
	s.rec.RecordOperation(op, out.reply.status.String())
	s.rec.RecordDuration(op, time.Since(received).Seconds())

	if out.reason != nil {
		c.log.Debug("request answered with error status",
			logger.String("command", op),
			logger.String("status", out.reply.status.String()),
			logger.Error(out.reason))
	}

	if cmd.NoResponse() {
		return
	}
	s.rec.ObservePayload(metrics.DirectionOut, len(out.reply.payload))
	c.replies <- out.reply
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		Header:          s.state.snapshotHeader(),
		Counts:          s.state.counts(),
		RetainedSamples: s.state.retainedSamples(),
		PendingWaits:    s.waits.len(),
		Connections:     s.connectionCount(),
	}
	if s.state.events != nil {
		snap.RetainedEvents = s.state.events.len()
	}
	return snap
}

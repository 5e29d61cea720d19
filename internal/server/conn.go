package server

import (
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/internal/observability/metrics"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// shutdownWriteGrace bounds the final reply a connection may write once the
// server is stopping.
const shutdownWriteGrace = time.Second

// request is one framed message on its way to the dispatcher.
type request struct {
	conn     *conn
	msg      fieldtrip.Message
	received time.Time
}

// frame is one result of the connection's read loop.
type frame struct {
	msg fieldtrip.Message
	err error
}

// conn is one accepted client. Its serve goroutine hands requests to the
// dispatcher and writes replies; a second goroutine frames the socket so a
// hang-up is seen while a reply is still outstanding. Neither touches buffer
// state.
type conn struct {
	id         string
	nc         net.Conn
	srv        *Server
	in         *readAhead
	frames     chan frame
	replies    chan reply // capacity 1: at most one acknowledged request is in flight
	done       chan struct{}
	readerDone chan struct{}
	log        logger.Logger
}

func newConn(s *Server, nc net.Conn) *conn {
	id := uuid.New().String()[:8]
	return &conn{
		id:         id,
		nc:         nc,
		srv:        s,
		in:         newReadAhead(nc, s.cfg.ReadAhead),
		frames:     make(chan frame),
		replies:    make(chan reply, 1),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		log: s.log.With(
			logger.String("conn_id", id),
			logger.String("remote", nc.RemoteAddr().String()),
		),
	}
}

func (c *conn) serve() {
	s := c.srv
	go c.readLoop()
	defer c.close()

	c.log.Debug("client connected")
	var queued *frame
	for {
		var f frame
		if queued != nil {
			f, queued = *queued, nil
		} else {
			select {
			case f = <-c.frames:
			case <-s.quit:
				return
			}
		}
		if f.err != nil {
			c.readFailed(f.err)
			return
		}

		req := request{conn: c, msg: f.msg, received: time.Now()}
		select {
		case s.requests <- req:
		case <-s.quit:
			return
		}
		if f.msg.Command.NoResponse() {
			continue
		}

		rep, ok, next := c.awaitReply(f.msg.Command)
		queued = next
		if !ok {
			return
		}
		if err := fieldtrip.WriteMessage(c.nc, rep.status, rep.payload); err != nil {
			c.fault(metrics.ErrorIO, err)
			return
		}
	}
}

// readLoop frames messages until the first read error, which it also
// delivers.
func (c *conn) readLoop() {
	defer close(c.readerDone)
	for {
		msg, err := fieldtrip.ReadMessage(c.in, c.srv.cfg.MaxPayload)
		select {
		case c.frames <- frame{msg: msg, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// awaitReply waits for the dispatcher's answer to cmd, the request just sent.
// The socket stays watched and the first frame read meanwhile is held back
// as next. A read error during a WAIT_DAT with no answer ready ends the
// connection; any other command is answered at once, so its reply is still
// delivered first.
func (c *conn) awaitReply(cmd fieldtrip.Command) (rep reply, ok bool, next *frame) {
	s := c.srv
	frames := c.frames
	for {
		select {
		case rep = <-c.replies:
			return rep, true, next
		case <-s.dispatchDone:
			// The dispatcher may have answered just before stopping
			select {
			case rep = <-c.replies:
				return rep, true, next
			default:
				return reply{}, false, nil
			}
		case f := <-frames:
			if f.err == nil || cmd != fieldtrip.WaitDat {
				next, frames = &f, nil
				continue
			}
			// Shutdown expires the read deadline after failing waits, so an
			// answer may already be queued
			select {
			case rep = <-c.replies:
				return rep, true, &f
			default:
			}
			c.readFailed(f.err)
			return reply{}, false, nil
		}
	}
}

// readFailed classifies a framing or transport error ending the read loop.
func (c *conn) readFailed(err error) {
	select {
	case <-c.srv.quit:
		return
	default:
	}

	switch {
	case errors.Is(err, io.EOF):
		c.log.Debug("client disconnected")
	case errors.Is(err, net.ErrClosed):
	case errors.Is(err, fieldtrip.ErrVersionMismatch):
		c.fault(metrics.ErrorVersion, err)
	case errors.Is(err, fieldtrip.ErrPayloadTooLarge):
		c.fault(metrics.ErrorOversize, err)
	case errors.Is(err, fieldtrip.ErrShortMessage):
		c.fault(metrics.ErrorTruncated, err)
	default:
		c.fault(metrics.ErrorIO, err)
	}
}

// fault reports a connection-level failure. Without keepalive the whole
// server stops with it.
func (c *conn) fault(kind string, err error) {
	s := c.srv
	select {
	case <-s.quit:
		return
	default:
	}

	s.rec.RecordError(metrics.OpConnection, kind)
	c.log.Warn("closing connection after fault",
		logger.String("fault", kind),
		logger.Error(err))

	if !s.cfg.KeepAlive {
		s.stop(errors.New(err).
			Component("server").
			Category(errors.CategoryConnection).
			Context("conn_id", c.id).
			Context("fault", kind).
			Build())
	}
}

func (c *conn) close() {
	s := c.srv
	_ = c.nc.Close()
	close(c.done)
	<-c.readerDone
	s.untrack(c)
	select {
	case s.gone <- c:
	case <-s.dispatchDone:
	}
	s.rec.ConnectionClosed()
}

// readAhead serves small reads from a ring buffer refilled with one large
// socket read, so framing a message costs one syscall instead of two.
// Reads at least as large as the ring bypass it.
type readAhead struct {
	src     io.Reader
	buf     *ringbuffer.RingBuffer
	scratch []byte
}

func newReadAhead(src io.Reader, size int) *readAhead {
	return &readAhead{
		src:     src,
		buf:     ringbuffer.New(size),
		scratch: make([]byte, size),
	}
}

func (r *readAhead) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.buf.IsEmpty() {
		if len(p) >= r.buf.Capacity() {
			return r.src.Read(p)
		}
		n, err := r.src.Read(r.scratch[:r.buf.Free()])
		if n == 0 {
			return 0, err
		}
		// Any error recurs on the next read once the buffered bytes are used
		if _, werr := r.buf.Write(r.scratch[:n]); werr != nil {
			return 0, werr
		}
	}
	return r.buf.Read(p)
}

// Buffered reports the bytes read from the socket but not yet consumed.
func (r *readAhead) Buffered() int {
	return r.buf.Length()
}

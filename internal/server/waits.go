package server

import (
	"time"

	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// pendingWait is a WAIT_DAT request whose answer is deferred until its
// thresholds are met, its timer fires or the generation ends.
type pendingWait struct {
	id       uint64
	conn     *conn
	req      fieldtrip.WaitRequest
	timer    *time.Timer
	received time.Time
}

// waitList holds pending waits by id. It is owned by the dispatch goroutine.
type waitList struct {
	nextID  uint64
	pending map[uint64]*pendingWait
}

func newWaitList() *waitList {
	return &waitList{pending: make(map[uint64]*pendingWait)}
}

func (w *waitList) len() int {
	return len(w.pending)
}

// wait answers a WAIT_DAT at once when it can, otherwise defers it.
func (s *Server) wait(req request) {
	wr, err := fieldtrip.DecodeWaitRequest(req.msg.Payload)
	if err != nil {
		s.respond(req.conn, req.msg.Command, req.received, fail(fieldtrip.WaitErr, err))
		return
	}
	if !s.state.active() {
		s.respond(req.conn, req.msg.Command, req.received, fail(fieldtrip.WaitErr, errNoHeader))
		return
	}

	counts := s.state.counts()
	if wr.Satisfied(counts) {
		s.respond(req.conn, req.msg.Command, req.received, ok(fieldtrip.WaitOK, fieldtrip.EncodeCounts(counts)))
		return
	}
	if wr.TimeoutMs == 0 {
		s.respond(req.conn, req.msg.Command, req.received, fail(fieldtrip.WaitErr, errWaitTimeout))
		return
	}

	w := s.waits
	w.nextID++
	pw := &pendingWait{id: w.nextID, conn: req.conn, req: wr, received: req.received}
	id := pw.id
	pw.timer = time.AfterFunc(time.Duration(wr.TimeoutMs)*time.Millisecond, func() {
		select {
		case s.expired <- id:
		case <-s.quit:
		}
	})
	w.pending[id] = pw

	req.conn.log.Trace("wait deferred",
		logger.Uint32("samples", wr.NSamples),
		logger.Uint32("events", wr.NEvents),
		logger.Uint32("timeout_ms", wr.TimeoutMs))
	s.rec.SetPendingWaits(w.len())
}

// releaseSatisfied answers every pending wait whose thresholds are now met.
func (s *Server) releaseSatisfied() {
	if s.waits.len() == 0 {
		return
	}
	counts := s.state.counts()
	for id, pw := range s.waits.pending {
		if pw.req.Satisfied(counts) {
			s.finishWait(id, ok(fieldtrip.WaitOK, fieldtrip.EncodeCounts(counts)))
		}
	}
}

// expire answers a wait whose timer fired. The wait may already be gone.
func (s *Server) expire(id uint64) {
	if _, found := s.waits.pending[id]; found {
		s.finishWait(id, fail(fieldtrip.WaitErr, errWaitTimeout))
	}
}

// failWaits answers every pending wait with WAIT_ERR.
func (s *Server) failWaits(reason error) {
	for id := range s.waits.pending {
		s.finishWait(id, fail(fieldtrip.WaitErr, reason))
	}
}

// dropWaits forgets the waits of a closed connection without answering.
func (s *Server) dropWaits(c *conn) {
	for id, pw := range s.waits.pending {
		if pw.conn == c {
			pw.timer.Stop()
			delete(s.waits.pending, id)
		}
	}
	s.rec.SetPendingWaits(s.waits.len())
}

func (s *Server) finishWait(id uint64, out outcome) {
	pw := s.waits.pending[id]
	pw.timer.Stop()
	delete(s.waits.pending, id)
	s.respond(pw.conn, fieldtrip.WaitDat, pw.received, out)
	s.rec.SetPendingWaits(s.waits.len())
}

package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/session"
)

// SorterHooks lets the Supervisor react to Sorter-observed conditions (e.g.
// run sendConnectAsync on NotConnected) without the Sorter holding a
// back-reference to the Supervisor.
type SorterHooks struct {
	NotConnected func()
}

// Sorter drains qAll and routes packets into the per-kind sub-queues,
// applying the device Failure-code policy. It finishes
// draining qAll before honoring a kill request.
type Sorter struct {
	q       *Queues
	session *session.State
	hooks   SorterHooks
	logger  *slog.Logger
	sleep   func(time.Duration)

	reconnectAttempts int

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewSorter returns a Sorter wired to the pipeline's queues and session state.
func NewSorter(q *Queues, sess *session.State, hooks SorterHooks, logger *slog.Logger) *Sorter {
	return &Sorter{q: q, session: sess, hooks: hooks, logger: logger, sleep: time.Sleep, killCh: make(chan struct{})}
}

func (s *Sorter) setState(v State) { s.state.Store(int32(v)) }
func (s *Sorter) State() State     { return State(s.state.Load()) }
func (s *Sorter) Kill()            { s.killOnce.Do(func() { close(s.killCh) }) }

func (s *Sorter) Run() {
	for {
		select {
		case <-s.killCh:
			s.drain()
			s.setState(StateKilled)
			return
		default:
		}

		p, ok := s.q.All.TryPop()
		if !ok {
			s.sleep(MinTimeout)
			continue
		}
		if fatal := s.route(p); fatal {
			s.setState(StateError)
			return
		}
	}
}

// drain empties qAll without further routing side effects beyond what
// route() already does, so a killed Sorter still delivers in-flight packets.
func (s *Sorter) drain() {
	for {
		p, ok := s.q.All.TryPop()
		if !ok {
			return
		}
		s.route(p)
	}
}

// route classifies and dispatches a single packet. It returns true if the
// packet represents a fatal condition the Supervisor must react to by
// reconnecting.
func (s *Sorter) route(p linkproto.Packet) bool {
	switch p.Type {
	case linkproto.TypeFailure:
		return s.routeFailure(p)
	case linkproto.TypeTransaction:
		s.routeTransaction(p)
	case linkproto.TypeStream:
		s.routeStream(p)
	default:
		s.logger.Warn("unknown_packet_type", "type", uint8(p.Type))
	}
	return false
}

func (s *Sorter) routeFailure(p linkproto.Packet) bool {
	code := p.ErrorCode()
	switch code {
	case linkproto.ErrBadChecksum, linkproto.ErrBadOpCode, linkproto.ErrBadPackType:
		if code == linkproto.ErrBadChecksum {
			metrics.IncChecksumFailure()
		}
		metrics.IncError(metrics.ErrFraming)
		s.logger.Error("fatal_device_error", "code", code)
		return true
	case linkproto.ErrNotConnected:
		metrics.IncReconnectAttempt()
		s.q.Commands.TryPush(linkproto.OpInitial)
		s.reconnectAttempts++
		s.logger.Warn("not_connected", "attempts", s.reconnectAttempts)
		if s.hooks.NotConnected != nil {
			s.hooks.NotConnected()
		}
		if s.reconnectAttempts >= ReconnectErrorLimit {
			s.logger.Error("reconnect_limit_exceeded")
			return true
		}
	case linkproto.ErrAlreadyConnected, linkproto.ErrAlreadyStreaming, linkproto.ErrAlreadyStopped,
		linkproto.ErrAlreadyTherapy, linkproto.ErrAlreadyNotTherapy:
		s.session.ResetSentFlags()
		s.logger.Warn("advisory_device_error", "code", code)
	default:
		s.logger.Info("device_error", "code", code)
	}
	return false
}

func (s *Sorter) routeTransaction(p linkproto.Packet) {
	switch p.Opcode() {
	case linkproto.OpKeepalive:
		if !s.q.Keepalive.TryPush(p) {
			s.logger.Warn("qkeepalive_full")
			metrics.IncQueueDrop("qkeepalive")
		} else {
			metrics.SetQueueDepth("qkeepalive", s.q.Keepalive.Len())
		}
	case linkproto.OpStartStream, linkproto.OpStopStream, linkproto.OpStartStim, linkproto.OpStopStim, linkproto.OpInitial:
		s.reconnectAttempts = 0
		if !s.q.CmdResp.TryPush(p) {
			s.logger.Warn("qcmdresp_full")
			metrics.IncQueueDrop("qcmdresp")
		} else {
			metrics.SetQueueDepth("qcmdresp", s.q.CmdResp.Len())
		}
		s.pushClientEvent(p)
	default:
		s.logger.Warn("unknown_opcode", "opcode", p.Opcode())
	}
}

// routeStream does not re-check the checksum: PacketFactory.IsReady() already
// rejects a packet with a bad checksum before it ever reaches qAll.
func (s *Sorter) routeStream(p linkproto.Packet) {
	sample, err := linkproto.DecodeStreamSample(p.Payload)
	if err != nil {
		s.logger.Warn("invalid_stream_payload", "error", err)
		return
	}
	if !s.q.Stream.TryPush(sample) {
		s.logger.Warn("qstream_full")
		metrics.IncQueueDrop("qstream")
	} else {
		metrics.SetQueueDepth("qstream", s.q.Stream.Len())
	}
	s.pushClientEvent(p)
}

// pushClientEvent forwards a packet to the subscriber-facing event queue,
// counting a drop the same way every other sub-queue does.
func (s *Sorter) pushClientEvent(p linkproto.Packet) {
	if !s.q.ClientEvents.TryPush(p) {
		s.logger.Warn("qclientevents_full")
		metrics.IncQueueDrop("qclientevents")
		return
	}
	metrics.SetQueueDepth("qclientevents", s.q.ClientEvents.Len())
}

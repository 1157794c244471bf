package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/queue"
	"github.com/kstaniek/neuroguard/internal/serialport"
)

// Listener reads the serial port byte-by-byte, feeds each byte to a
// PacketFactory, and pushes completed packets onto qAll.
type Listener struct {
	port   serialport.Port
	qAll   *queue.Queue[linkproto.Packet]
	logger *slog.Logger
	sleep  func(time.Duration)

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewListener returns a Listener reading from port and pushing to qAll.
func NewListener(port serialport.Port, qAll *queue.Queue[linkproto.Packet], logger *slog.Logger) *Listener {
	return &Listener{
		port:   port,
		qAll:   qAll,
		logger: logger,
		sleep:  time.Sleep,
		killCh: make(chan struct{}),
	}
}

func (l *Listener) setState(s State) { l.state.Store(int32(s)) }
func (l *Listener) State() State     { return State(l.state.Load()) }

// Kill requests cooperative shutdown.
func (l *Listener) Kill() {
	l.killOnce.Do(func() { close(l.killCh) })
}

// Run reads bytes until a fatal error, too many framing timeouts, or Kill.
func (l *Listener) Run() {
	factory := linkproto.NewFactory()
	consecutiveFramingTimeouts := 0
	buf := make([]byte, 1)
	for {
		select {
		case <-l.killCh:
			l.setState(StateKilled)
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			l.logger.Error("listener_read_error", "error", err)
			metrics.IncError(metrics.ErrSerialRead)
			l.setState(StateError)
			return
		}
		if n == 0 {
			l.sleep(MinTimeout)
			continue
		}

		if factory.Feed(buf[0]) {
			metrics.IncPacketsFramed()
			if !l.qAll.TryPush(factory.Packet()) {
				l.logger.Warn("qall_full_dropping_packet")
				metrics.IncQueueDrop("qall")
			} else {
				metrics.SetQueueDepth("qall", l.qAll.Len())
			}
			factory = linkproto.NewFactory()
			consecutiveFramingTimeouts = 0
			continue
		}

		if factory.IsFailed() {
			metrics.IncFramingResync()
			consecutiveFramingTimeouts++
			l.logger.Warn("framing_timeout", "consecutive", consecutiveFramingTimeouts)
			if consecutiveFramingTimeouts >= ListenerTimeoutLimit {
				l.setState(StateTimeout)
				return
			}
			factory = linkproto.NewFactory()
		}
	}
}

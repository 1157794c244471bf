package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/notify"
)

// Notifier drains qClientEvents and republishes them on the notify.Hub,
// decoupling subscriber delivery from the Sorter's hot routing path.
type Notifier struct {
	q      *Queues
	hub    *notify.Hub
	logger *slog.Logger
	sleep  func(time.Duration)

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewNotifier returns a Notifier delivering qClientEvents to hub.
func NewNotifier(q *Queues, hub *notify.Hub, logger *slog.Logger) *Notifier {
	return &Notifier{q: q, hub: hub, logger: logger, sleep: time.Sleep, killCh: make(chan struct{})}
}

func (n *Notifier) setState(s State) { n.state.Store(int32(s)) }
func (n *Notifier) State() State     { return State(n.state.Load()) }
func (n *Notifier) Kill()            { n.killOnce.Do(func() { close(n.killCh) }) }

func (n *Notifier) Run() {
	for {
		select {
		case <-n.killCh:
			n.drain()
			n.setState(StateKilled)
			return
		default:
		}

		p, ok := n.q.ClientEvents.TryPop()
		if !ok {
			n.sleep(MinTimeout)
			continue
		}
		n.deliver(p)
	}
}

func (n *Notifier) drain() {
	for {
		p, ok := n.q.ClientEvents.TryPop()
		if !ok {
			return
		}
		n.deliver(p)
	}
}

func (n *Notifier) deliver(p linkproto.Packet) {
	switch p.Type {
	case linkproto.TypeStream:
		sample, err := linkproto.DecodeStreamSample(p.Payload)
		if err != nil {
			n.logger.Warn("notifier_bad_stream_payload", "error", err)
			return
		}
		n.hub.EmitStreamData(sample)
	case linkproto.TypeTransaction:
		switch p.Opcode() {
		case linkproto.OpStartStream:
			n.hub.EmitStreamStarted()
		case linkproto.OpStopStream:
			n.hub.EmitStreamStopped()
		case linkproto.OpStartStim:
			n.hub.EmitTherapyStarted()
		case linkproto.OpStopStim:
			n.hub.EmitTherapyStopped()
		}
	}
}

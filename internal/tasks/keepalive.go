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

// Keepalive periodically emits a Transaction(Keepalive) packet and
// correlates the device's echo via qKeepalive, resetting the device's
// watchdog.
type Keepalive struct {
	writer *serialport.Writer
	q      *queue.Queue[linkproto.Packet]
	ids    *IDGenerator
	logger *slog.Logger
	sleep  func(time.Duration)

	outstanding   bool
	outstandingID uint8

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewKeepalive returns a Keepalive task writing through writer and reading
// responses from qKeepalive.
func NewKeepalive(writer *serialport.Writer, qKeepalive *queue.Queue[linkproto.Packet], ids *IDGenerator, logger *slog.Logger) *Keepalive {
	return &Keepalive{writer: writer, q: qKeepalive, ids: ids, logger: logger, sleep: time.Sleep, killCh: make(chan struct{})}
}

func (k *Keepalive) setState(s State) { k.state.Store(int32(s)) }
func (k *Keepalive) State() State     { return State(k.state.Load()) }
func (k *Keepalive) Kill()            { k.killOnce.Do(func() { close(k.killCh) }) }

func (k *Keepalive) Run() {
	for {
		if k.outstanding {
			if resp, ok := k.q.TryPop(); ok {
				if resp.ID != k.outstandingID {
					k.logger.Warn("keepalive_id_mismatch", "got", resp.ID, "want", k.outstandingID)
				}
				k.outstanding = false
			} else {
				metrics.IncKeepaliveMiss()
				k.logger.Warn("keepalive_missed", "id", k.outstandingID)
			}
		}

		select {
		case <-k.killCh:
			k.setState(StateKilled)
			return
		default:
		}

		id := k.ids.Next()
		p := linkproto.NewTransaction(id, linkproto.OpKeepalive)
		if err := k.writer.WritePacket(p); err != nil {
			k.logger.Error("keepalive_write_error", "error", err)
			k.setState(StateError)
			return
		}
		metrics.IncCommandSent(linkproto.OpKeepalive.String())
		k.outstandingID = id
		k.outstanding = true

		k.sleep(MaxTimeout)
	}
}

package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/neuroguard/internal/classifier"
	"github.com/kstaniek/neuroguard/internal/csvlog"
	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/session"
)

// Classifier drains qStream, runs every sample through the FFT classifier,
// issues StartStim/StopStim commands per the closed-loop policy,
// and appends a decision record to the active CSV log, if any.
type Classifier struct {
	q       *Queues
	session *session.State
	engine  *classifier.Engine
	logger  *slog.Logger
	sleep   func(time.Duration)
	now     func() int64

	csvMu sync.Mutex
	csv   *csvlog.Writer

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewClassifier returns a Classifier task driving a fresh classifier.Engine.
func NewClassifier(q *Queues, sess *session.State, logger *slog.Logger) *Classifier {
	return &Classifier{
		q: q, session: sess, engine: classifier.NewEngine(), logger: logger,
		sleep: time.Sleep, now: func() int64 { return time.Now().UnixMilli() },
		killCh: make(chan struct{}),
	}
}

func (c *Classifier) setState(s State) { c.state.Store(int32(s)) }
func (c *Classifier) State() State     { return State(c.state.Load()) }
func (c *Classifier) Kill()            { c.killOnce.Do(func() { close(c.killCh) }) }

// SetCSVWriter installs or clears (nil) the CSV log the Classifier appends
// decision records to. The Supervisor calls this on StartStream/StopStream
// acknowledgement.
func (c *Classifier) SetCSVWriter(w *csvlog.Writer) {
	c.csvMu.Lock()
	c.csv = w
	c.csvMu.Unlock()
}

func (c *Classifier) Run() {
	for {
		select {
		case <-c.killCh:
			c.drain()
			c.setState(StateKilled)
			return
		default:
		}

		sample, ok := c.q.Stream.TryPop()
		if !ok {
			c.sleep(MinTimeout)
			continue
		}
		c.process(sample)
	}
}

// drain finishes processing remaining queued samples before honoring Kill.
func (c *Classifier) drain() {
	for {
		sample, ok := c.q.Stream.TryPop()
		if !ok {
			return
		}
		c.process(sample)
	}
}

func (c *Classifier) process(sample linkproto.StreamSample) {
	isStimming := c.session.IsStimming()
	step := c.engine.Step(sample.Microvolts, isStimming)

	if step.Predicted {
		metrics.IncClassifierPrediction()
		if step.SeizureDetected {
			metrics.IncSeizureDetected()
		}
	}

	if step.StartTherapy && !c.session.StartStimSent() {
		c.session.SetStartStimSent(true)
		c.q.Commands.TryPush(linkproto.OpStartStim)
		metrics.IncTherapyStart()
	}
	if step.StopTherapy && !c.session.StopStimSent() {
		c.session.SetStopStimSent(true)
		c.q.Commands.TryPush(linkproto.OpStopStim)
		metrics.IncTherapyStop()
	}

	c.csvMu.Lock()
	w := c.csv
	c.csvMu.Unlock()
	if w != nil {
		if err := w.WriteRecord(c.now(), sample.Timestamp, sample.Microvolts, step.SeizureDetected, isStimming); err != nil {
			c.logger.Error("csvlog_write_error", "error", err)
		}
	}
}

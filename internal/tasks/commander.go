package tasks

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/serialport"
	"github.com/kstaniek/neuroguard/internal/session"
)

// CommanderHooks lets the Supervisor react to acknowledged commands (e.g.
// open/close the CSV log on StartStream/StopStream) without the Commander
// holding a back-reference to the Supervisor.
type CommanderHooks struct {
	OnStreamStarted  func()
	OnStreamStopped  func()
	OnTherapyStarted func()
	OnTherapyStopped func()
}

// Commander drains qCommands one opcode at a time, correlates the device's
// response via qCmdResp, and applies session-state side effects on ack.
// At most one command is in flight end-to-end.
type Commander struct {
	q       *Queues
	session *session.State
	writer  *serialport.Writer
	ids     *IDGenerator
	hooks   CommanderHooks
	logger  *slog.Logger
	sleep   func(time.Duration)

	lastCommandID  uint8
	lastCommandOp  linkproto.Opcode
	lastReturned   bool
	hasLastCommand bool

	killCh   chan struct{}
	killOnce sync.Once
	state    atomic.Int32
}

// NewCommander returns a Commander wired to the pipeline queues and session.
func NewCommander(q *Queues, sess *session.State, writer *serialport.Writer, ids *IDGenerator, hooks CommanderHooks, logger *slog.Logger) *Commander {
	return &Commander{
		q: q, session: sess, writer: writer, ids: ids, hooks: hooks, logger: logger,
		sleep: time.Sleep, lastReturned: true, killCh: make(chan struct{}),
	}
}

func (c *Commander) setState(s State) { c.state.Store(int32(s)) }
func (c *Commander) State() State     { return State(c.state.Load()) }
func (c *Commander) Kill()            { c.killOnce.Do(func() { close(c.killCh) }) }

func (c *Commander) Run() {
	for {
		select {
		case <-c.killCh:
			c.setState(StateKilled)
			return
		default:
		}

		if op, ok := c.q.Commands.TryPop(); ok {
			c.handleOutbound(op)
		}

		c.sleep(MinTimeout)

		if resp, ok := c.q.CmdResp.TryPop(); ok {
			c.handleResponse(resp)
		}
	}
}

func (c *Commander) handleOutbound(op linkproto.Opcode) {
	if op != linkproto.OpInitial && c.hasLastCommand && op == c.lastCommandOp {
		c.logger.Warn("duplicate_command_suppressed", "opcode", op)
		c.hasLastCommand = false
		c.lastReturned = true
		return
	}
	if !c.lastReturned {
		c.logger.Warn("command_please_wait", "opcode", op)
		return
	}
	id := c.ids.Next()
	p := linkproto.NewTransaction(id, op)
	if err := c.writer.WritePacket(p); err != nil {
		c.logger.Error("command_write_error", "error", err, "opcode", op)
		metrics.IncError(metrics.ErrSerialWrite)
		c.setState(StateError)
		return
	}
	metrics.IncCommandSent(op.String())
	c.lastCommandID = id
	c.lastCommandOp = op
	c.hasLastCommand = true
	c.lastReturned = false
}

func (c *Commander) handleResponse(resp linkproto.Packet) {
	if !c.hasLastCommand || resp.ID != c.lastCommandID {
		c.logger.Warn("command_response_mismatch", "got", resp.ID, "want", c.lastCommandID)
		c.hasLastCommand = false
		c.lastReturned = true
		return
	}
	c.lastReturned = true
	switch resp.Opcode() {
	case linkproto.OpStartStream:
		c.session.SetStreaming(true)
		c.session.SetStartStreamSent(false)
		if c.hooks.OnStreamStarted != nil {
			c.hooks.OnStreamStarted()
		}
	case linkproto.OpStopStream:
		c.session.SetStreaming(false)
		c.session.SetStopStreamSent(false)
		if c.hooks.OnStreamStopped != nil {
			c.hooks.OnStreamStopped()
		}
	case linkproto.OpStartStim:
		c.session.SetStimming(true)
		c.session.SetStartStimSent(false)
		if c.hooks.OnTherapyStarted != nil {
			c.hooks.OnTherapyStarted()
		}
	case linkproto.OpStopStim:
		c.session.SetStimming(false)
		c.session.SetStopStimSent(false)
		if c.hooks.OnTherapyStopped != nil {
			c.hooks.OnTherapyStopped()
		}
	case linkproto.OpInitial:
		if c.session.UserStreaming() {
			c.q.Commands.TryPush(linkproto.OpStartStream)
		}
	}
	c.hasLastCommand = false
}

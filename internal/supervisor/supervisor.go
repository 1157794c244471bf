// Package supervisor owns the serial handle and the six pipeline tasks,
// implementing the connection lifecycle, reconnect policy, and public API
// described by the driver's concurrency model.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/neuroguard/internal/csvlog"
	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/metrics"
	"github.com/kstaniek/neuroguard/internal/notify"
	"github.com/kstaniek/neuroguard/internal/serialport"
	"github.com/kstaniek/neuroguard/internal/session"
	"github.com/kstaniek/neuroguard/internal/tasks"
)

const (
	defaultBaud            = 115200
	defaultReadTimeout      = 5000 * time.Millisecond
	deviceQuiescenceWait   = 3 * time.Second
	sendConnectBackoff      = 1 * time.Second
	stopStreamDrainWait     = 500 * time.Millisecond
)

var (
	// ErrNotRunning is returned by a command method when status != Running.
	ErrNotRunning = errors.New("supervisor: not running")
	// ErrAlreadyPending is returned when the requested transition is already
	// in flight or already in the requested state.
	ErrAlreadyPending = errors.New("supervisor: command already pending or redundant")
	// ErrNoPortsAvailable is returned by connect when no candidate port
	// accepts the handshake.
	ErrNoPortsAvailable = errors.New("supervisor: no serial port accepted handshake")
)

// Config configures a Supervisor.
type Config struct {
	Baud        int
	ReadTimeout time.Duration
	CSVDir      string
	CSVDebug    bool
	Logger      *slog.Logger

	// PortNames, if non-nil, overrides port enumeration with a fixed list
	// (used by callers that already know the device path).
	PortNames []string
}

// Supervisor is the process-wide owner of the serial connection and the
// pipeline of tasks reading and writing it.
type Supervisor struct {
	cfg Config

	session *session.State
	queues  *tasks.Queues
	ids     *tasks.IDGenerator
	bag     *tasks.Bag
	hub     *notify.Hub
	logger  *slog.Logger

	sleep      func(time.Duration)
	enumerate  func() ([]string, error)
	openPort   func(name string, baud int, readTimeout time.Duration) (serialport.Port, error)

	mu          sync.Mutex
	port        serialport.Port
	writer      *serialport.Writer
	classifier  *tasks.Classifier
	csvWriter   *csvlog.Writer
	monitorStop chan struct{}
}

// New returns a Supervisor in StatusCreated, with no port open.
func New(cfg Config) *Supervisor {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:       cfg,
		session:   session.New(),
		queues:    tasks.NewQueues(tasks.DefaultQueueCapacity),
		ids:       &tasks.IDGenerator{},
		bag:       tasks.NewBag(),
		hub:       notify.New(logger),
		logger:    logger,
		sleep:     time.Sleep,
		enumerate: defaultEnumerate(cfg.PortNames),
		openPort:  serialport.Open,
	}
}

func defaultEnumerate(fixed []string) func() ([]string, error) {
	if len(fixed) > 0 {
		return func() ([]string, error) { return fixed, nil }
	}
	return serialport.EnumeratePorts
}

// Session exposes the shared session state for observables.
func (s *Supervisor) Session() *session.State { return s.session }

// Notify exposes the subscription hub.
func (s *Supervisor) Notify() *notify.Hub { return s.hub }

// Status returns the current connection lifecycle status.
func (s *Supervisor) Status() session.Status { return s.session.Status() }

// IsRunning reports whether status is Running.
func (s *Supervisor) IsRunning() bool { return s.session.Status() == session.StatusRunning }

// IsStreaming reports the session's current streaming flag.
func (s *Supervisor) IsStreaming() bool { return s.session.IsStreaming() }

// IsStimming reports the session's current therapy flag.
func (s *Supervisor) IsStimming() bool { return s.session.IsStimming() }

// Start opens the serial port, performs the handshake, and spawns the
// pipeline tasks.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if s.port != nil {
		s.closePortLocked()
	}
	if err := s.connectLocked(ctx); err != nil {
		s.session.SetStatus(session.StatusError)
		return err
	}
	s.spawnTasksLocked()
	s.session.SetStatus(session.StatusRunning)
	if s.session.UserStreaming() {
		s.queues.Commands.TryPush(linkproto.OpStartStream)
	}
	return nil
}

// connectLocked enumerates candidate ports, opening and handshaking each in
// turn, stopping at the first success.
func (s *Supervisor) connectLocked(ctx context.Context) error {
	names, err := s.enumerate()
	if err != nil {
		return fmt.Errorf("supervisor: enumerate ports: %w", err)
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		port, err := s.openPort(name, s.cfg.Baud, s.cfg.ReadTimeout)
		if err != nil {
			s.logger.Warn("port_open_failed", "port", name, "error", err)
			continue
		}
		s.session.SetStatus(session.StatusOpened)
		if fl, ok := port.(serialport.Flusher); ok {
			_ = fl.Flush()
		}
		writer := serialport.NewWriter(port)
		if err := s.sendConnectLocked(port, writer); err != nil {
			s.logger.Warn("handshake_failed", "port", name, "error", err)
			_ = port.Close()
			continue
		}
		s.port = port
		s.writer = writer
		s.session.SetStatus(session.StatusConnected)
		s.logger.Info("connected", "port", name)
		return nil
	}
	return ErrNoPortsAvailable
}

// sendConnectLocked performs up to SendConnectRetryLimit handshake attempts:
// write Transaction(Initial), read back the echoed bytes, and compare
// byte-exactly.
func (s *Supervisor) sendConnectLocked(port serialport.Port, writer *serialport.Writer) error {
	for attempt := 0; attempt < tasks.SendConnectRetryLimit; attempt++ {
		id := s.ids.Next()
		p := linkproto.NewTransaction(id, linkproto.OpInitial)
		wire, err := p.Marshal()
		if err != nil {
			return err
		}
		if err := writer.WritePacket(p); err != nil {
			metrics.IncError(metrics.ErrSerialWrite)
			return err
		}
		echo, err := serialport.ReadExact(port, len(wire))
		if err != nil {
			if errors.Is(err, serialport.ErrReadTimeout) {
				s.logger.Warn("sendconnect_timeout", "attempt", attempt)
				s.sleep(sendConnectBackoff)
				continue
			}
			metrics.IncError(metrics.ErrSerialRead)
			return err
		}
		if bytes.Equal(echo, wire) {
			return nil
		}
		s.logger.Warn("sendconnect_echo_mismatch", "attempt", attempt)
	}
	metrics.IncError(metrics.ErrHandshake)
	return fmt.Errorf("supervisor: sendConnect exhausted %d attempts", tasks.SendConnectRetryLimit)
}

// spawnTasksLocked (re)starts all six pipeline tasks and arms a monitor that
// reacts to any task exiting in a faulted state.
func (s *Supervisor) spawnTasksLocked() {
	q := s.queues

	listener := tasks.NewListener(s.port, q.All, s.logger)
	sorter := tasks.NewSorter(q, s.session, tasks.SorterHooks{NotConnected: s.sendConnectAsync}, s.logger)
	keepalive := tasks.NewKeepalive(s.writer, q.Keepalive, s.ids, s.logger)
	commander := tasks.NewCommander(q, s.session, s.writer, s.ids, tasks.CommanderHooks{
		OnStreamStarted: s.onStreamStartedLocked,
		OnStreamStopped: s.onStreamStoppedLocked,
	}, s.logger)
	classifierTask := tasks.NewClassifier(q, s.session, s.logger)
	notifier := tasks.NewNotifier(q, s.hub, s.logger)

	s.bag.TryAdd("listener", listener)
	s.bag.TryAdd("sorter", sorter)
	s.bag.TryAdd("keepalive", keepalive)
	s.bag.TryAdd("commander", commander)
	s.bag.TryAdd("classifier", classifierTask)
	s.bag.TryAdd("notifier", notifier)
	s.classifier = classifierTask

	go listener.Run()
	go sorter.Run()
	go keepalive.Run()
	go commander.Run()
	go classifierTask.Run()
	go notifier.Run()

	stopCh := make(chan struct{})
	if s.monitorStop != nil {
		close(s.monitorStop)
	}
	s.monitorStop = stopCh
	go s.monitor(stopCh)
}

// monitor polls the task bag's health and triggers reconnect the first time
// any task is observed Timeout or Error.
func (s *Supervisor) monitor(stopCh chan struct{}) {
	ticker := time.NewTicker(tasks.MinTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if faulted := s.bag.HealthCheck(); len(faulted) > 0 {
				s.logger.Warn("task_faulted", "tasks", faulted)
				go s.reconnect()
				return
			}
		}
	}
}

// reconnect kills all tasks, waits briefly for drain, waits for
// device-side quiescence, then re-handshakes.
func (s *Supervisor) reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status() == session.StatusStopping {
		return
	}
	s.session.SetStatus(session.StatusRestart)
	s.bag.KillAll()
	if s.monitorStop != nil {
		close(s.monitorStop)
		s.monitorStop = nil
	}
	s.sleep(tasks.KillTimeout)
	s.closePortLocked()
	s.sleep(deviceQuiescenceWait)

	if err := s.connectLocked(context.Background()); err != nil {
		s.session.SetStatus(session.StatusError)
		s.logger.Error("reconnect_failed", "error", err)
		return
	}
	s.spawnTasksLocked()
	s.session.SetStatus(session.StatusRunning)
	if s.session.UserStreaming() {
		s.queues.Commands.TryPush(linkproto.OpStartStream)
	}
}

// Stop drains a pending stream, kills every task, and closes the port.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.IsStreaming() {
		s.queues.Commands.TryPush(linkproto.OpStopStream)
		s.sleep(stopStreamDrainWait)
	}
	s.session.SetStatus(session.StatusStopping)
	s.bag.KillAll()
	if s.monitorStop != nil {
		close(s.monitorStop)
		s.monitorStop = nil
	}
	s.closePortLocked()
	s.session.SetStatus(session.StatusCreated)
}

func (s *Supervisor) closePortLocked() {
	if s.csvWriter != nil {
		_ = s.csvWriter.Close()
		s.csvWriter = nil
		if s.classifier != nil {
			s.classifier.SetCSVWriter(nil)
		}
	}
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.writer = nil
}

func (s *Supervisor) onStreamStartedLocked() {
	w, err := csvlog.Open(s.cfg.CSVDir, s.cfg.CSVDebug)
	if err != nil {
		s.logger.Error("csvlog_open_failed", "error", err)
		return
	}
	s.mu.Lock()
	s.csvWriter = w
	if s.classifier != nil {
		s.classifier.SetCSVWriter(w)
	}
	s.mu.Unlock()
}

func (s *Supervisor) onStreamStoppedLocked() {
	s.mu.Lock()
	w := s.csvWriter
	s.csvWriter = nil
	if s.classifier != nil {
		s.classifier.SetCSVWriter(nil)
	}
	s.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}

// sendConnectAsync recovers from a NotConnected failure: clear every queue
// and reset therapy/sent-flag state, then re-request the handshake.
func (s *Supervisor) sendConnectAsync() {
	s.queues.All.Drain()
	s.queues.Keepalive.Drain()
	s.queues.CmdResp.Drain()
	s.queues.Stream.Drain()
	s.queues.Commands.Drain()
	s.queues.ClientEvents.Drain()
	s.session.ResetForReconnect()
	s.queues.Commands.TryPush(linkproto.OpInitial)
}

// StartStreaming requests the device start streaming samples. Refuses if
// not Running or if a StartStream is already in flight.
func (s *Supervisor) StartStreaming() error {
	if s.session.Status() != session.StatusRunning {
		return ErrNotRunning
	}
	if s.session.StartStreamSent() {
		return ErrAlreadyPending
	}
	s.session.SetUserStreaming(true)
	s.session.SetStartStreamSent(true)
	s.queues.Commands.TryPush(linkproto.OpStartStream)
	return nil
}

// StopStreaming requests the device stop streaming samples.
func (s *Supervisor) StopStreaming() error {
	if s.session.Status() != session.StatusRunning {
		return ErrNotRunning
	}
	if s.session.StopStreamSent() {
		return ErrAlreadyPending
	}
	s.session.SetUserStreaming(false)
	s.session.SetStopStreamSent(true)
	s.queues.Commands.TryPush(linkproto.OpStopStream)
	return nil
}

// StartTherapy requests closed-loop stimulation start.
func (s *Supervisor) StartTherapy() error {
	if s.session.Status() != session.StatusRunning {
		return ErrNotRunning
	}
	if s.session.IsStimming() || s.session.StartStimSent() {
		return ErrAlreadyPending
	}
	s.session.SetStartStimSent(true)
	s.queues.Commands.TryPush(linkproto.OpStartStim)
	return nil
}

// StopTherapy requests closed-loop stimulation stop.
func (s *Supervisor) StopTherapy() error {
	if s.session.Status() != session.StatusRunning {
		return ErrNotRunning
	}
	if !s.session.IsStimming() || s.session.StopStimSent() {
		return ErrAlreadyPending
	}
	s.session.SetStopStimSent(true)
	s.queues.Commands.TryPush(linkproto.OpStopStim)
	return nil
}

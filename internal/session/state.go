// Package session owns the process-wide connection/command state shared by
// every task: connection status, streaming/therapy flags, and the
// sent-but-unacked bookkeeping the Sorter and Commander use to correlate
// device acknowledgements.
package session

import (
	"fmt"
	"sync/atomic"
)

// Status is the Supervisor's connection lifecycle state.
type Status int32

const (
	StatusCreated Status = iota
	StatusOpened
	StatusConnected
	StatusRunning
	StatusRestart
	StatusStopping
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusOpened:
		return "opened"
	case StatusConnected:
		return "connected"
	case StatusRunning:
		return "running"
	case StatusRestart:
		return "restart"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// State is the shared session state. It is owned by the Supervisor and read
// atomically by every task; all fields update independently under atomics
// rather than a single shared lock, since no task needs a consistent
// multi-field snapshot.
type State struct {
	status atomic.Int32

	isStreaming atomic.Bool
	isStimming  atomic.Bool

	startStreamSent atomic.Bool
	stopStreamSent  atomic.Bool
	startStimSent   atomic.Bool
	stopStimSent    atomic.Bool

	userStreaming atomic.Bool
}

// New returns a freshly created State.
func New() *State {
	s := &State{}
	s.status.Store(int32(StatusCreated))
	return s
}

func (s *State) Status() Status        { return Status(s.status.Load()) }
func (s *State) SetStatus(v Status)    { s.status.Store(int32(v)) }
func (s *State) IsStreaming() bool     { return s.isStreaming.Load() }
func (s *State) SetStreaming(v bool)   { s.isStreaming.Store(v) }
func (s *State) IsStimming() bool      { return s.isStimming.Load() }
func (s *State) SetStimming(v bool)    { s.isStimming.Store(v) }
func (s *State) UserStreaming() bool   { return s.userStreaming.Load() }
func (s *State) SetUserStreaming(v bool) { s.userStreaming.Store(v) }

func (s *State) StartStreamSent() bool     { return s.startStreamSent.Load() }
func (s *State) SetStartStreamSent(v bool) { s.startStreamSent.Store(v) }
func (s *State) StopStreamSent() bool      { return s.stopStreamSent.Load() }
func (s *State) SetStopStreamSent(v bool)  { s.stopStreamSent.Store(v) }
func (s *State) StartStimSent() bool       { return s.startStimSent.Load() }
func (s *State) SetStartStimSent(v bool)   { s.startStimSent.Store(v) }
func (s *State) StopStimSent() bool        { return s.stopStimSent.Load() }
func (s *State) SetStopStimSent(v bool)    { s.stopStimSent.Store(v) }

// ResetSentFlags clears all sent-but-unacked flags. Used after an advisory
// Failure response (AlreadyStreaming/AlreadyStopped/AlreadyTherapy/
// AlreadyNotTherapy/AlreadyConnected) so the Supervisor's public API will
// allow a fresh attempt.
func (s *State) ResetSentFlags() {
	s.startStreamSent.Store(false)
	s.stopStreamSent.Store(false)
	s.startStimSent.Store(false)
	s.stopStimSent.Store(false)
}

// ResetForReconnect clears command-in-flight and therapy state the way
// sendConnectAsync does after a NotConnected error: the device has forgotten
// us, so any previously sent-but-unacked commands and therapy state no
// longer apply.
func (s *State) ResetForReconnect() {
	s.ResetSentFlags()
	s.isStimming.Store(false)
}

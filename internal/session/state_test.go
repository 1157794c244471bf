package session

import "testing"

func TestState_DefaultsAndTransitions(t *testing.T) {
	s := New()
	if s.Status() != StatusCreated {
		t.Fatalf("initial status = %v, want created", s.Status())
	}
	s.SetStatus(StatusRunning)
	if s.Status() != StatusRunning {
		t.Fatalf("status = %v, want running", s.Status())
	}
	if s.IsStreaming() || s.IsStimming() {
		t.Fatalf("streaming/stimming should default false")
	}
	s.SetStreaming(true)
	s.SetStimming(true)
	if !s.IsStreaming() || !s.IsStimming() {
		t.Fatalf("expected both flags set")
	}
}

func TestState_ResetSentFlags(t *testing.T) {
	s := New()
	s.SetStartStreamSent(true)
	s.SetStopStimSent(true)
	s.ResetSentFlags()
	if s.StartStreamSent() || s.StopStimSent() {
		t.Fatalf("expected sent flags cleared")
	}
}

func TestState_ResetForReconnect(t *testing.T) {
	s := New()
	s.SetStimming(true)
	s.SetStartStimSent(true)
	s.ResetForReconnect()
	if s.IsStimming() {
		t.Fatalf("expected isStimming cleared on reconnect reset")
	}
	if s.StartStimSent() {
		t.Fatalf("expected sent flags cleared on reconnect reset")
	}
}

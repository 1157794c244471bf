package tasks

import (
	"testing"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/session"
)

func TestSorter_RoutesStreamPacketToQStreamAndClientEvents(t *testing.T) {
	q := NewQueues(8)
	sess := session.New()
	s := NewSorter(q, sess, SorterHooks{}, quietLogger())
	s.sleep = func(time.Duration) {}

	sample := linkproto.StreamSample{Timestamp: 0, Raw: 0}
	payload := make([]byte, linkproto.StreamSampleSize)
	p := linkproto.Packet{Type: linkproto.TypeStream, ID: 7, Payload: payload}

	q.All.TryPush(p)
	done := make(chan struct{})
	go func() { s.Run(); close(done) }()

	var got linkproto.StreamSample
	for i := 0; i < 1000; i++ {
		if v, ok := q.Stream.TryPop(); ok {
			got = v
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Kill()
	<-done

	if got.Timestamp != sample.Timestamp || got.Raw != sample.Raw {
		t.Fatalf("got sample %+v", got)
	}
	if _, ok := q.ClientEvents.TryPop(); !ok {
		t.Fatalf("expected stream packet also pushed to qClientEvents")
	}
}

func TestSorter_NotConnectedTriggersHookAndEnqueuesInitial(t *testing.T) {
	q := NewQueues(8)
	sess := session.New()
	hookCalled := make(chan struct{}, 1)
	s := NewSorter(q, sess, SorterHooks{NotConnected: func() { hookCalled <- struct{}{} }}, quietLogger())
	s.sleep = func(time.Duration) {}

	fail := linkproto.Packet{Type: linkproto.TypeFailure, ID: 1, Payload: []byte{byte(linkproto.ErrNotConnected)}}
	q.All.TryPush(fail)

	done := make(chan struct{})
	go func() { s.Run(); close(done) }()

	select {
	case <-hookCalled:
	case <-time.After(time.Second):
		t.Fatal("NotConnected hook was not invoked")
	}
	s.Kill()
	<-done

	if op, ok := q.Commands.TryPop(); !ok || op != linkproto.OpInitial {
		t.Fatalf("expected Initial enqueued, got op=%v ok=%v", op, ok)
	}
}

func TestSorter_FatalErrorStopsWithStateError(t *testing.T) {
	q := NewQueues(8)
	sess := session.New()
	s := NewSorter(q, sess, SorterHooks{}, quietLogger())
	s.sleep = func(time.Duration) {}

	fail := linkproto.Packet{Type: linkproto.TypeFailure, ID: 1, Payload: []byte{byte(linkproto.ErrBadChecksum)}}
	q.All.TryPush(fail)

	done := make(chan struct{})
	go func() { s.Run(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sorter did not exit on fatal error")
	}
	if s.State() != StateError {
		t.Fatalf("state = %v, want StateError", s.State())
	}
}

package tasks

import (
	"testing"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/session"
)

func TestClassifierTask_DrainsStreamAndRunsEngine(t *testing.T) {
	q := NewQueues(512)
	sess := session.New()
	c := NewClassifier(q, sess, quietLogger())
	c.sleep = func(time.Duration) {}

	done := make(chan struct{})
	go func() { c.Run(); close(done) }()

	for i := 0; i < 200; i++ {
		q.Stream.TryPush(linkproto.StreamSample{Timestamp: uint32(i), Raw: 0, Microvolts: -1885.0033})
	}

	for i := 0; i < 1000 && q.Stream.Len() > 0; i++ {
		time.Sleep(time.Millisecond)
	}
	c.Kill()
	<-done

	if q.Stream.Len() != 0 {
		t.Fatalf("classifier left %d unconsumed samples", q.Stream.Len())
	}
}

func TestClassifierTask_SetCSVWriterNilIsSafe(t *testing.T) {
	q := NewQueues(8)
	sess := session.New()
	c := NewClassifier(q, sess, quietLogger())
	c.SetCSVWriter(nil)
	c.process(linkproto.StreamSample{Microvolts: 0})
}

package tasks

import (
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/queue"
	"github.com/kstaniek/neuroguard/internal/serialport"
)

type captureWritePort struct {
	mu      sync.Mutex
	written [][]byte
}

func (p *captureWritePort) Read(b []byte) (int, error) { return 0, nil }
func (p *captureWritePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := append([]byte(nil), b...)
	p.written = append(p.written, cp)
	return len(b), nil
}
func (p *captureWritePort) Close() error { return nil }

func (p *captureWritePort) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.written)
}

func TestKeepalive_EmitsAndCorrelatesResponse(t *testing.T) {
	port := &captureWritePort{}
	writer := serialport.NewWriter(port)
	qK := queue.New[linkproto.Packet](4)
	ids := &IDGenerator{}
	k := NewKeepalive(writer, qK, ids, quietLogger())
	k.sleep = func(time.Duration) { time.Sleep(time.Millisecond) }

	done := make(chan struct{})
	go func() { k.Run(); close(done) }()

	for i := 0; i < 1000 && port.count() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	if port.count() == 0 {
		t.Fatal("keepalive never wrote a packet")
	}
	// Respond with the id the keepalive just sent (id 0, first from a fresh
	// IDGenerator), acknowledging before the task loops again.
	qK.TryPush(linkproto.NewTransaction(0, linkproto.OpKeepalive))

	for i := 0; i < 1000 && port.count() < 2; i++ {
		time.Sleep(time.Millisecond)
	}
	k.Kill()
	<-done

	if port.count() < 2 {
		t.Fatalf("expected at least 2 keepalives written, got %d", port.count())
	}
}

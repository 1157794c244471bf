package supervisor

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/neuroguard/internal/linkproto"
	"github.com/kstaniek/neuroguard/internal/serialport"
	"github.com/kstaniek/neuroguard/internal/session"
)

// loopPort is a fake serial port. Writes are captured; if echo is true, a
// write's bytes are also queued for the next Read, modeling the device
// echoing the handshake Initial packet back to the host (spec S1).
type loopPort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	toRead   bytes.Buffer
	echo     bool
	closed   bool
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.toRead.Len() == 0 {
		return 0, nil
	}
	return p.toRead.Read(b)
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.written.Write(b)
	if p.echo {
		p.toRead.Write(b)
	}
	return n, err
}

func (p *loopPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *loopPort) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toRead.Write(b)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytesDiscard{}, nil))
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }

func newTestSupervisor(t *testing.T, port *loopPort) *Supervisor {
	t.Helper()
	s := New(Config{
		PortNames: []string{"fake0"},
		CSVDir:    t.TempDir(),
		Logger:    discardLogger(),
	})
	s.openPort = func(name string, baud int, readTimeout time.Duration) (serialport.Port, error) {
		return port, nil
	}
	s.sleep = func(time.Duration) {} // tests run with no real backoff delay
	return s
}

func TestSupervisor_StartHandshakeSucceeds(t *testing.T) {
	port := &loopPort{echo: true}
	s := newTestSupervisor(t, port)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if got := s.Status(); got != session.StatusRunning {
		t.Fatalf("status = %v, want running", got)
	}
	if !s.IsRunning() {
		t.Fatalf("IsRunning() = false, want true")
	}
}

func TestSupervisor_StartStreaming_DuplicateSuppressed(t *testing.T) {
	port := &loopPort{echo: true}
	s := newTestSupervisor(t, port)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.StartStreaming(); err != nil {
		t.Fatalf("first StartStreaming: %v", err)
	}
	if err := s.StartStreaming(); err != ErrAlreadyPending {
		t.Fatalf("second StartStreaming: got %v, want ErrAlreadyPending", err)
	}

	op, ok := s.queues.Commands.TryPop()
	if !ok || op != linkproto.OpStartStream {
		t.Fatalf("expected exactly one queued StartStream, got op=%v ok=%v", op, ok)
	}
	if _, ok := s.queues.Commands.TryPop(); ok {
		t.Fatalf("expected no second queued command")
	}
}

func TestSupervisor_StartTherapy_RequiresRunning(t *testing.T) {
	port := &loopPort{}
	s := newTestSupervisor(t, port)

	if err := s.StartTherapy(); err != ErrNotRunning {
		t.Fatalf("StartTherapy before Start: got %v, want ErrNotRunning", err)
	}
}

func TestSupervisor_ConnectFailsWithNoEcho(t *testing.T) {
	port := &loopPort{echo: false}
	s := newTestSupervisor(t, port)

	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("Start: expected handshake failure, got nil error")
	}
}

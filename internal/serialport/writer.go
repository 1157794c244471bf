package serialport

import (
	"sync"

	"github.com/kstaniek/neuroguard/internal/linkproto"
)

// Writer serializes all writes to the serial port behind a single mutex.
// The protocol requires at most one packet in flight end-to-end, so writes
// here are synchronous rather than buffered through an async fan-in
// writer: Supervisor (handshake), Commander, and Keepalive each call
// WritePacket and block only as long as the underlying port's write
// timeout allows.
type Writer struct {
	mu   sync.Mutex
	port Port
}

// NewWriter wraps port with a write mutex.
func NewWriter(port Port) *Writer { return &Writer{port: port} }

// WritePacket marshals p and writes it to the port, holding the write mutex
// for the duration of the write.
func (w *Writer) WritePacket(p linkproto.Packet) error {
	wire, err := p.Marshal()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.port.Write(wire)
	return err
}

// Package serialport abstracts the physical serial link: opening and
// enumerating devices, timeout-aware reads, and a single synchronous
// writer serializing all outbound packets.
package serialport

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the named serial device at baud with the given read timeout.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// Flusher is implemented by ports that can discard buffered input/output,
// such as *serial.Port. connect() calls it, when available, before the
// handshake so stale bytes from a prior session never leak into it.
type Flusher interface {
	Flush() error
}

// ErrReadTimeout is returned by ReadExact when a read call yields no bytes
// and no error, the tarm/serial convention for a ReadTimeout expiry.
var ErrReadTimeout = errTimeout

type timeoutError string

func (e timeoutError) Error() string { return string(e) }

const errTimeout = timeoutError("serialport: read timeout")

// ReadExact reads exactly n bytes from port, retrying on short reads, and
// reports ErrReadTimeout if a Read call returns zero bytes with no error.
func ReadExact(port Port, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		chunk := make([]byte, n-len(buf))
		read, err := port.Read(chunk)
		if read > 0 {
			buf = append(buf, chunk[:read]...)
		}
		if err != nil {
			return buf, err
		}
		if read == 0 {
			return buf, errTimeout
		}
	}
	return buf, nil
}

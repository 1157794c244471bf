// Package linkproto implements the binary link-layer protocol spoken over
// the serial line: packet framing, checksum, and the byte-wise factory that
// reassembles packets from a raw stream with resync on header drift.
package linkproto

import "fmt"

// MaxPayloadSize is the largest payload a single packet may carry.
const MaxPayloadSize = 249

// Header is the fixed 3-byte sync sequence every packet begins with.
var Header = [3]byte{0xAA, 0x01, 0x02}

// PacketType identifies the kind of packet on the wire.
type PacketType uint8

const (
	TypeFailure     PacketType = 0
	TypeTransaction PacketType = 1
	TypeStream      PacketType = 2
)

func (t PacketType) String() string {
	switch t {
	case TypeFailure:
		return "failure"
	case TypeTransaction:
		return "transaction"
	case TypeStream:
		return "stream"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Opcode is the first payload byte of a Transaction packet.
type Opcode uint8

const (
	OpInitial     Opcode = 0x01
	OpKeepalive   Opcode = 0x02
	OpStartStream Opcode = 0x03
	OpStopStream  Opcode = 0x04
	OpStartStim   Opcode = 0x05
	OpStopStim    Opcode = 0x06
)

func (o Opcode) String() string {
	switch o {
	case OpInitial:
		return "initial"
	case OpKeepalive:
		return "keepalive"
	case OpStartStream:
		return "start_stream"
	case OpStopStream:
		return "stop_stream"
	case OpStartStim:
		return "start_stim"
	case OpStopStim:
		return "stop_stim"
	default:
		return fmt.Sprintf("opcode(0x%02X)", uint8(o))
	}
}

// ErrorCode is the first payload byte of a Failure packet.
type ErrorCode uint8

const (
	ErrBadChecksum ErrorCode = iota
	ErrTooLong
	ErrBadPackType
	ErrBadOpCode
	ErrAlreadyConnected
	ErrAlreadyStreaming
	ErrAlreadyStopped
	ErrNotConnected
	ErrAlreadyTherapy
	ErrAlreadyNotTherapy
)

func (e ErrorCode) String() string {
	switch e {
	case ErrBadChecksum:
		return "bad_checksum"
	case ErrTooLong:
		return "too_long"
	case ErrBadPackType:
		return "bad_pack_type"
	case ErrBadOpCode:
		return "bad_opcode"
	case ErrAlreadyConnected:
		return "already_connected"
	case ErrAlreadyStreaming:
		return "already_streaming"
	case ErrAlreadyStopped:
		return "already_stopped"
	case ErrNotConnected:
		return "not_connected"
	case ErrAlreadyTherapy:
		return "already_therapy"
	case ErrAlreadyNotTherapy:
		return "already_not_therapy"
	default:
		return fmt.Sprintf("error(%d)", uint8(e))
	}
}

// Packet is the fully decoded on-wire unit.
type Packet struct {
	Type    PacketType
	ID      uint8
	Payload []byte
}

// Len returns the total wire length of the packet (7 + len(Payload)).
func (p Packet) Len() int { return 7 + len(p.Payload) }

// Opcode returns payload[0] as an Opcode; only meaningful for Transaction packets.
func (p Packet) Opcode() Opcode {
	if len(p.Payload) == 0 {
		return 0
	}
	return Opcode(p.Payload[0])
}

// ErrorCode returns payload[0] as an ErrorCode; only meaningful for Failure packets.
func (p Packet) ErrorCode() ErrorCode {
	if len(p.Payload) == 0 {
		return 0
	}
	return ErrorCode(p.Payload[0])
}

// checksum computes the unsigned 8-bit sum (mod 256) of b.
func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Marshal renders p as its canonical wire byte sequence:
// AA 01 02 | type | id | size | payload[size] | checksum.
func (p Packet) Marshal() ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("linkproto: payload too long (%d > %d)", len(p.Payload), MaxPayloadSize)
	}
	out := make([]byte, 0, p.Len())
	out = append(out, Header[:]...)
	out = append(out, byte(p.Type), p.ID, byte(len(p.Payload)))
	out = append(out, p.Payload...)
	out = append(out, checksum(out))
	return out, nil
}

// NewTransaction builds a Transaction packet for the given opcode and id.
// extra, if present, is appended to the payload after the opcode byte.
func NewTransaction(id uint8, op Opcode, extra ...byte) Packet {
	payload := make([]byte, 0, 1+len(extra))
	payload = append(payload, byte(op))
	payload = append(payload, extra...)
	return Packet{Type: TypeTransaction, ID: id, Payload: payload}
}

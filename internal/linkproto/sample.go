package linkproto

import (
	"encoding/binary"
	"fmt"
)

// StreamSampleSize is the fixed payload length of a Stream packet: a 32-bit
// LE device timestamp followed by a 16-bit LE raw ADC count.
const StreamSampleSize = 6

// uvScale and uvOffset implement the device's fixed ADC-to-microvolt
// conversion: microvolts = raw/65536*3932.0 - 1885.0032958984373.
const (
	uvScale  = 3932.0
	uvOffset = -1885.0032958984373
)

// StreamSample is the decoded payload of a Stream packet.
type StreamSample struct {
	Timestamp  uint32
	Raw        uint16
	Microvolts float64
}

// DecodeStreamSample decodes a Stream packet's payload. The caller must have
// already validated the packet checksum; DecodeStreamSample only validates
// payload length.
func DecodeStreamSample(payload []byte) (StreamSample, error) {
	if len(payload) != StreamSampleSize {
		return StreamSample{}, fmt.Errorf("linkproto: stream payload must be %d bytes, got %d", StreamSampleSize, len(payload))
	}
	ts := binary.LittleEndian.Uint32(payload[0:4])
	raw := binary.LittleEndian.Uint16(payload[4:6])
	return StreamSample{
		Timestamp:  ts,
		Raw:        raw,
		Microvolts: RawToMicrovolts(raw),
	}, nil
}

// RawToMicrovolts applies the device's fixed ADC transfer function.
func RawToMicrovolts(raw uint16) float64 {
	return float64(raw)/65536*uvScale + uvOffset
}

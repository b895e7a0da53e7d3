package gsup

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is a single IPA frame: a protocol byte plus its payload. The
// framer does not interpret payload contents; the caller routes on
// Protocol.
type Frame struct {
	Protocol uint8
	Payload  []byte
}

// IsCCM reports whether this frame belongs to the CCM control sub-protocol.
func (f Frame) IsCCM() bool {
	return f.Protocol == CCMSentinel
}

// MaxFrameLen bounds the payload length field (uint16), guarding against
// unbounded allocation on a corrupt or hostile length prefix.
const MaxFrameLen = 65535

// ReadFrame reads exactly one IPA frame from r: a 3-byte header (big-endian
// length, protocol byte) followed by length payload bytes. A short read on
// either the header or the payload is a fatal framing error, per the
// framer's "short read is a fatal connection error" rule.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("gsup: short IPA header read: %w", err)
	}

	length := binary.BigEndian.Uint16(header[:2])
	protocol := header[2]

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("gsup: short IPA payload read (want %d bytes): %w", length, err)
		}
	}

	return Frame{Protocol: protocol, Payload: payload}, nil
}

// WriteFrame writes one IPA frame as a single contiguous write: the 3-byte
// header followed by the payload. Callers on the same connection must
// serialize calls to WriteFrame themselves (see the connection's
// single-writer discipline); the framer performs no locking of its own.
func WriteFrame(w io.Writer, protocol uint8, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return fmt.Errorf("gsup: payload of %d bytes exceeds IPA frame limit of %d", len(payload), MaxFrameLen)
	}

	buf := make([]byte, 3+len(payload))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(payload)))
	buf[2] = protocol
	copy(buf[3:], payload)

	_, err := w.Write(buf)
	return err
}

package gsup

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
)

// ErrDuplicateIE is returned by DecodeIEs when a type appears more than
// once. Per the data model this is a protocol error, not a framing error:
// the caller replies with the appropriate *Error and keeps the connection
// open, rather than closing the socket.
var ErrDuplicateIE = errors.New("gsup: duplicate IE")

// IE is a single Information Element: a typed, length-prefixed value inside
// a GSUP payload.
type IE struct {
	Type  IEType
	Value []byte
}

// MaxIEValueLen is the largest value a single IE may carry; the length
// field is one byte wide.
const MaxIEValueLen = 255

// SerializeTo appends this IE's wire encoding to b: one type byte, one
// length byte, then the value. Mirrors the gopacket SerializeBuffer idiom
// used for other length-prefixed binary layers in this codebase.
func (ie IE) SerializeTo(b gopacket.SerializeBuffer) error {
	if len(ie.Value) > MaxIEValueLen {
		return fmt.Errorf("gsup: IE type 0x%02x value too long: %d bytes", ie.Type, len(ie.Value))
	}
	bytes, err := b.AppendBytes(2 + len(ie.Value))
	if err != nil {
		return err
	}
	bytes[0] = uint8(ie.Type)
	bytes[1] = uint8(len(ie.Value))
	copy(bytes[2:], ie.Value)
	return nil
}

// EncodeIEs serializes an ordered sequence of IEs into buf, preserving
// supply order on the wire.
func EncodeIEs(buf gopacket.SerializeBuffer, ies []IE) error {
	for _, ie := range ies {
		if err := ie.SerializeTo(buf); err != nil {
			return err
		}
	}
	return nil
}

// DecodedIEs is the result of decoding a GSUP payload's IE sequence: the
// original ordered list plus a first-occurrence-wins index by type, per the
// data model ("duplicate IEs ... must be rejected").
type DecodedIEs struct {
	Ordered []IE
	byType  map[IEType][]byte
}

// Get returns the value of the first occurrence of typ, if present.
func (d DecodedIEs) Get(typ IEType) ([]byte, bool) {
	v, ok := d.byType[typ]
	return v, ok
}

// DecodeIEs walks data as a sequence of IE boundaries until exhausted.
// A slice with fewer than two trailing bytes is a framing error. A
// malformed IE (insufficient value bytes) is reported with its byte
// offset. A duplicate IE type is a protocol error.
func DecodeIEs(data []byte, df gopacket.DecodeFeedback) (DecodedIEs, error) {
	result := DecodedIEs{byType: make(map[IEType][]byte)}

	offset := 0
	for offset < len(data) {
		if len(data)-offset < 2 {
			df.SetTruncated()
			return DecodedIEs{}, fmt.Errorf("gsup: trailing %d byte(s) at offset %d is not a valid IE boundary", len(data)-offset, offset)
		}
		typ := IEType(data[offset])
		length := int(data[offset+1])
		if len(data)-offset-2 < length {
			df.SetTruncated()
			return DecodedIEs{}, fmt.Errorf("gsup: malformed IE type 0x%02x at offset %d: need %d value bytes, have %d", typ, offset, length, len(data)-offset-2)
		}
		value := data[offset+2 : offset+2+length]

		if _, dup := result.byType[typ]; dup {
			return DecodedIEs{}, fmt.Errorf("%w: type 0x%02x at offset %d", ErrDuplicateIE, typ, offset)
		}

		result.Ordered = append(result.Ordered, IE{Type: typ, Value: value})
		result.byType[typ] = value
		offset += 2 + length
	}

	return result, nil
}

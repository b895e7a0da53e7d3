package gsup

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/gopacket"
)

// ErrEmptyPayload is returned by Decode when the GSUP payload carries no
// message-type byte at all. Per the data model this is a protocol error,
// not a framing error: the connection stays open.
var ErrEmptyPayload = errors.New("gsup: empty payload")

// Message is a decoded GSUP payload: the message-type byte plus its IE
// sequence in both list and by-type-index form.
type Message struct {
	Type MessageType
	IEs  DecodedIEs
}

// Encode serializes typ and ies into a GSUP payload, with no outer length
// prefix (that is the IPA framer's job).
func Encode(typ MessageType, ies []IE) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := EncodeIEs(buf, ies); err != nil {
		return nil, err
	}
	body, err := buf.PrependBytes(1)
	if err != nil {
		return nil, err
	}
	body[0] = uint8(typ)
	return buf.Bytes(), nil
}

// Decode parses a GSUP payload. An empty payload is a protocol error.
//
// On an IE-decode error the returned Message still carries Type, so a
// caller that cannot parse the IEs can still reply with the *Error message
// appropriate to the request that was being decoded (see ErrorTypeFor).
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, ErrEmptyPayload
	}
	typ := MessageType(data[0])
	ies, err := DecodeIEs(data[1:], gopacket.NilDecodeFeedback)
	if err != nil {
		return Message{Type: typ}, err
	}
	return Message{Type: typ, IEs: ies}, nil
}

// ErrorTypeFor maps a request message type to the *Error message type a
// handler replies with when it cannot process the request. The second
// return value is false for message types this server never replies to
// with a typed error (e.g. the *Result/*Error types themselves).
func ErrorTypeFor(reqType MessageType) (MessageType, bool) {
	switch reqType {
	case MsgUpdateLocationRequest:
		return MsgUpdateLocationError, true
	case MsgInsertSubscriberDataRequest:
		return MsgInsertSubscriberDataError, true
	case MsgSendAuthInfoRequest:
		return MsgSendAuthInfoError, true
	case MsgSendSubscriberDataRequest:
		return MsgSendSubscriberDataError, true
	case MsgSendRoutingInfoForSMRequest:
		return MsgSendRoutingInfoForSMError, true
	default:
		return 0, false
	}
}

var imsiPattern = regexp.MustCompile(`^[0-9]{5,15}$`)

// DecodeIMSI extracts and validates the IMSI IE: 5-15 ASCII digits.
func (m Message) DecodeIMSI() (string, error) {
	v, ok := m.IEs.Get(IEIMSI)
	if !ok {
		return "", fmt.Errorf("gsup: missing IMSI IE")
	}
	imsi := string(v)
	if !imsiPattern.MatchString(imsi) {
		return "", fmt.Errorf("gsup: IMSI %q is not 5-15 digits", imsi)
	}
	return imsi, nil
}

// ErrorIEs builds the IE sequence for an *Error response: just the Cause.
func ErrorIEs(cause Cause) []IE {
	return []IE{{Type: IECause, Value: []byte{uint8(cause)}}}
}

// IMSIIE builds the IMSI IE from its digit-string form.
func IMSIIE(imsi string) IE {
	return IE{Type: IEIMSI, Value: []byte(imsi)}
}

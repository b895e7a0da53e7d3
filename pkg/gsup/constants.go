// Package gsup implements the Generic Subscriber Update Protocol codec: the
// message-type/IE wire format carried inside IPA frames between an HLR
// front-end and its MSC/SGSN peers.
package gsup

// MessageType identifies the kind of a GSUP payload. Values are the
// 3GPP-consistent ones called out in the external interface: Insert
// Subscriber Data lives at 0x07/0x08/0x09, Send Subscriber Data at
// 0x10/0x11/0x12, distinct from each other despite the source prototype
// having defined both under overlapping numbers.
type MessageType uint8

const (
	MsgUpdateLocationRequest MessageType = 0x04
	MsgUpdateLocationResult  MessageType = 0x05
	MsgUpdateLocationError   MessageType = 0x06

	MsgInsertSubscriberDataRequest MessageType = 0x07
	MsgInsertSubscriberDataResult  MessageType = 0x08
	MsgInsertSubscriberDataError   MessageType = 0x09

	MsgSendAuthInfoRequest MessageType = 0x0A
	MsgSendAuthInfoResult  MessageType = 0x0B
	MsgSendAuthInfoError   MessageType = 0x0C

	MsgSendSubscriberDataRequest MessageType = 0x10
	MsgSendSubscriberDataResult  MessageType = 0x11
	MsgSendSubscriberDataError   MessageType = 0x12

	MsgSendRoutingInfoForSMRequest MessageType = 0x14
	MsgSendRoutingInfoForSMResult  MessageType = 0x15
	MsgSendRoutingInfoForSMError   MessageType = 0x16
)

// String names a message type for logging; unknown types print their hex
// value.
func (m MessageType) String() string {
	switch m {
	case MsgUpdateLocationRequest:
		return "UpdateLocationRequest"
	case MsgUpdateLocationResult:
		return "UpdateLocationResult"
	case MsgUpdateLocationError:
		return "UpdateLocationError"
	case MsgInsertSubscriberDataRequest:
		return "InsertSubscriberDataRequest"
	case MsgInsertSubscriberDataResult:
		return "InsertSubscriberDataResult"
	case MsgInsertSubscriberDataError:
		return "InsertSubscriberDataError"
	case MsgSendAuthInfoRequest:
		return "SendAuthInfoRequest"
	case MsgSendAuthInfoResult:
		return "SendAuthInfoResult"
	case MsgSendAuthInfoError:
		return "SendAuthInfoError"
	case MsgSendSubscriberDataRequest:
		return "SendSubscriberDataRequest"
	case MsgSendSubscriberDataResult:
		return "SendSubscriberDataResult"
	case MsgSendSubscriberDataError:
		return "SendSubscriberDataError"
	case MsgSendRoutingInfoForSMRequest:
		return "SendRoutingInfoForSMRequest"
	case MsgSendRoutingInfoForSMResult:
		return "SendRoutingInfoForSMResult"
	case MsgSendRoutingInfoForSMError:
		return "SendRoutingInfoForSMError"
	default:
		return "Unknown"
	}
}

// IEType identifies the kind of value carried by an Information Element.
type IEType uint8

const (
	IEIMSI                  IEType = 0x01
	IECause                 IEType = 0x02
	IERAND                  IEType = 0x04
	IEAUTN                  IEType = 0x09
	IEMSISDN                IEType = 0x0C
	IESubscriberStatus      IEType = 0x0D
	IENetworkAccessMode     IEType = 0x0E
	IEBearerServices        IEType = 0x0F
	IETeleservices          IEType = 0x10
	IEVLRNumber             IEType = 0x11
	IEMSCNumber             IEType = 0x12
	IESGSNNumber            IEType = 0x13
	IEMMENumber             IEType = 0x14
	IESMRPDA                IEType = 0x15
	IESMRPOA                IEType = 0x16
	IESubscriberDataFlags   IEType = 0x18
	IEGSMBearerCapabilities IEType = 0x19
)

// Cause enumerates the GSUP error cause codes this core produces.
type Cause uint8

const (
	CauseIMSIUnknown                 Cause = 0x02
	CauseIllegalMS                   Cause = 0x03
	CauseAuthUnacceptable            Cause = 0x05
	CauseSubscriberDataNotAvailable  Cause = 0x1A
	CauseSMSRoutingError             Cause = 0x1B
	CauseProtocolError               Cause = 0x6F
)

// SubscriberStatus values carried in the SubscriberStatus IE.
type SubscriberStatus uint8

const (
	SubscriberStatusServiceGranted SubscriberStatus = 0x00
)

// NetworkAccessMode values carried in the NetworkAccessMode IE.
type NetworkAccessMode uint8

const (
	NetworkAccessModePacketAndCircuit NetworkAccessMode = 0x00
)

// CCMSentinel is the IPA protocol byte that marks a frame as belonging to
// the CCM control sub-protocol rather than to the GSUP payload channel.
const CCMSentinel uint8 = 0xFE

// Protocol is the IPA protocol byte this server uses for outgoing GSUP
// frames. The framer treats any non-CCM byte as "pass up", so a peer's
// exact choice of discriminator on ingress is not required to match; this
// server is consistent about the one it emits.
const Protocol uint8 = 0x05

// CCM sub-message first-payload-byte discriminators.
const (
	CCMPing           uint8 = 0x00
	CCMPong           uint8 = 0x01
	CCMIdentityReq    uint8 = 0x04
	CCMIdentityResp   uint8 = 0x05
	CCMIdentityACK    uint8 = 0x06
)

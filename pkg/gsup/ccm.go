package gsup

import "fmt"

// IdentityTag identifies one field of the CCM Identity Response tag/value
// sequence.
type IdentityTag uint8

const (
	IdentityTagSerialNumber     IdentityTag = 0x00
	IdentityTagUnitName         IdentityTag = 0x01
	IdentityTagLocation         IdentityTag = 0x02
	IdentityTagUnitType         IdentityTag = 0x03
	IdentityTagEquipmentVersion IdentityTag = 0x04
	IdentityTagSoftwareVersion  IdentityTag = 0x05
	IdentityTagMACAddress       IdentityTag = 0x07
	IdentityTagUnitID           IdentityTag = 0x08
)

// Identity holds the values this HLR reports in a CCM Identity Response.
// Order of the fields below is the wire order required by the external
// interface.
type Identity struct {
	UnitID            string
	MACAddress        string
	Location          string
	UnitType          string
	EquipmentVersion  string
	SoftwareVersion   string
	UnitName          string
	SerialNumber      string
}

// DefaultIdentity returns the implementation-chosen identity values this
// server advertises.
func DefaultIdentity() Identity {
	return Identity{
		UnitID:           "0/0/0",
		MACAddress:       "00:00:00:00:00:00",
		Location:         "",
		UnitType:         "",
		EquipmentVersion: "",
		SoftwareVersion:  "osmo-hlr-gsup-go-1.0.0",
		UnitName:         "HLR",
		SerialNumber:     "0",
	}
}

// EncodeIdentityResponse builds the CCM Identity Response payload: the
// 0x05 message-type byte followed by each tag/value pair as
// [tag][utf-8 bytes][0x00], in the fixed order from the external
// interface.
func EncodeIdentityResponse(id Identity) []byte {
	pairs := []struct {
		tag   IdentityTag
		value string
	}{
		{IdentityTagUnitID, id.UnitID},
		{IdentityTagMACAddress, id.MACAddress},
		{IdentityTagLocation, id.Location},
		{IdentityTagUnitType, id.UnitType},
		{IdentityTagEquipmentVersion, id.EquipmentVersion},
		{IdentityTagSoftwareVersion, id.SoftwareVersion},
		{IdentityTagUnitName, id.UnitName},
		{IdentityTagSerialNumber, id.SerialNumber},
	}

	out := []byte{CCMIdentityResp}
	for _, p := range pairs {
		out = append(out, uint8(p.tag))
		out = append(out, []byte(p.value)...)
		out = append(out, 0x00)
	}
	return out
}

// HandleCCM reacts to a CCM frame's payload and returns the reply payload
// to send, if any, plus whether the connection's handshake-state should be
// advanced to "identified".
func HandleCCM(payload []byte, id Identity) (reply []byte, identified bool, err error) {
	if len(payload) == 0 {
		return nil, false, fmt.Errorf("gsup: empty CCM payload")
	}

	switch payload[0] {
	case CCMPing:
		return []byte{CCMPong}, false, nil
	case CCMIdentityReq:
		return EncodeIdentityResponse(id), false, nil
	case CCMIdentityACK:
		return nil, true, nil
	default:
		return nil, false, nil
	}
}

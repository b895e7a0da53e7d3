package gsup

import (
	"bytes"
	"testing"
)

func TestHandleCCMPing(t *testing.T) {
	reply, identified, err := HandleCCM([]byte{CCMPing}, DefaultIdentity())
	if err != nil {
		t.Fatalf("HandleCCM(PING) error = %v", err)
	}
	if !bytes.Equal(reply, []byte{CCMPong}) {
		t.Errorf("HandleCCM(PING) reply = %v, want PONG", reply)
	}
	if identified {
		t.Error("HandleCCM(PING) should not advance handshake state")
	}
}

func TestHandleCCMIdentityRequest(t *testing.T) {
	id := DefaultIdentity()
	reply, _, err := HandleCCM([]byte{CCMIdentityReq}, id)
	if err != nil {
		t.Fatalf("HandleCCM(IdentityRequest) error = %v", err)
	}
	if len(reply) == 0 || reply[0] != CCMIdentityResp {
		t.Fatalf("reply[0] = %v, want CCMIdentityResp", reply)
	}

	want := EncodeIdentityResponse(id)
	if !bytes.Equal(reply, want) {
		t.Errorf("HandleCCM(IdentityRequest) reply = %v, want %v", reply, want)
	}
}

func TestHandleCCMIdentityACK(t *testing.T) {
	reply, identified, err := HandleCCM([]byte{CCMIdentityACK}, DefaultIdentity())
	if err != nil {
		t.Fatalf("HandleCCM(IdentityACK) error = %v", err)
	}
	if reply != nil {
		t.Errorf("HandleCCM(IdentityACK) reply = %v, want nil", reply)
	}
	if !identified {
		t.Error("HandleCCM(IdentityACK) should advance handshake state to identified")
	}
}

func TestEncodeIdentityResponseTagOrder(t *testing.T) {
	id := Identity{
		UnitID: "0/0/0", MACAddress: "00:00:00:00:00:00", Location: "",
		UnitType: "", EquipmentVersion: "", SoftwareVersion: "osmo-hlr-gsup-go-1.0.0",
		UnitName: "HLR", SerialNumber: "42",
	}
	reply := EncodeIdentityResponse(id)

	wantTagOrder := []IdentityTag{
		IdentityTagUnitID, IdentityTagMACAddress, IdentityTagLocation,
		IdentityTagUnitType, IdentityTagEquipmentVersion, IdentityTagSoftwareVersion,
		IdentityTagUnitName, IdentityTagSerialNumber,
	}

	offset := 1 // skip message-type byte
	for i, wantTag := range wantTagOrder {
		if offset >= len(reply) {
			t.Fatalf("pair %d: ran out of bytes at offset %d", i, offset)
		}
		gotTag := IdentityTag(reply[offset])
		if gotTag != wantTag {
			t.Errorf("pair %d: tag = 0x%02x, want 0x%02x", i, gotTag, wantTag)
		}
		offset++
		for offset < len(reply) && reply[offset] != 0x00 {
			offset++
		}
		offset++ // skip NUL terminator
	}
}

func TestHandleCCMUnknownSubtype(t *testing.T) {
	reply, identified, err := HandleCCM([]byte{0xFF}, DefaultIdentity())
	if err != nil {
		t.Fatalf("HandleCCM(unknown) error = %v", err)
	}
	if reply != nil || identified {
		t.Errorf("HandleCCM(unknown) = %v, %v, want nil, false", reply, identified)
	}
}

func TestHandleCCMEmptyPayload(t *testing.T) {
	if _, _, err := HandleCCM(nil, DefaultIdentity()); err == nil {
		t.Fatal("HandleCCM(nil): want error, got nil")
	}
}

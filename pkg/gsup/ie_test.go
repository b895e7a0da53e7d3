package gsup

import (
	"bytes"
	"testing"

	"github.com/google/gopacket"
)

func TestEncodeDecodeIEsRoundTrip(t *testing.T) {
	ies := []IE{
		{Type: IEIMSI, Value: []byte("001017890123453")},
		{Type: IERAND, Value: []byte{0x00, 0x01, 0x02, 0x03}},
		{Type: IEMSISDN, Value: []byte("1234567890")},
	}

	buf := gopacket.NewSerializeBuffer()
	if err := EncodeIEs(buf, ies); err != nil {
		t.Fatalf("EncodeIEs() error = %v", err)
	}

	decoded, err := DecodeIEs(buf.Bytes(), gopacket.NilDecodeFeedback)
	if err != nil {
		t.Fatalf("DecodeIEs() error = %v", err)
	}

	if len(decoded.Ordered) != len(ies) {
		t.Fatalf("got %d IEs, want %d", len(decoded.Ordered), len(ies))
	}
	for i, ie := range ies {
		if decoded.Ordered[i].Type != ie.Type || !bytes.Equal(decoded.Ordered[i].Value, ie.Value) {
			t.Errorf("IE[%d] = %+v, want %+v", i, decoded.Ordered[i], ie)
		}
	}

	v, ok := decoded.Get(IEMSISDN)
	if !ok || string(v) != "1234567890" {
		t.Errorf("Get(IEMSISDN) = %q, %v, want %q, true", v, ok, "1234567890")
	}
}

func TestDecodeIEsTrailingBytes(t *testing.T) {
	_, err := DecodeIEs([]byte{0x01}, gopacket.NilDecodeFeedback)
	if err == nil {
		t.Fatal("DecodeIEs() with 1 trailing byte: want error, got nil")
	}
}

func TestDecodeIEsShortValue(t *testing.T) {
	_, err := DecodeIEs([]byte{0x01, 0x05, 0xAA}, gopacket.NilDecodeFeedback)
	if err == nil {
		t.Fatal("DecodeIEs() with insufficient value bytes: want error, got nil")
	}
}

func TestDecodeIEsDuplicateRejected(t *testing.T) {
	data := []byte{0x01, 0x01, 'a', 0x01, 0x01, 'b'}
	_, err := DecodeIEs(data, gopacket.NilDecodeFeedback)
	if err == nil {
		t.Fatal("DecodeIEs() with duplicate IE type: want error, got nil")
	}
}

func TestEncodeIEValueTooLong(t *testing.T) {
	ie := IE{Type: IEIMSI, Value: make([]byte, 256)}
	buf := gopacket.NewSerializeBuffer()
	if err := ie.SerializeTo(buf); err == nil {
		t.Fatal("SerializeTo() with 256-byte value: want error, got nil")
	}
}

func TestIEOrderPreserved(t *testing.T) {
	ies := []IE{
		{Type: IEMSCNumber, Value: []byte("49987654321")},
		{Type: IESGSNNumber, Value: []byte("49123456789")},
		{Type: IEIMSI, Value: []byte("001017890123453")},
	}
	buf := gopacket.NewSerializeBuffer()
	if err := EncodeIEs(buf, ies); err != nil {
		t.Fatalf("EncodeIEs() error = %v", err)
	}
	decoded, err := DecodeIEs(buf.Bytes(), gopacket.NilDecodeFeedback)
	if err != nil {
		t.Fatalf("DecodeIEs() error = %v", err)
	}
	for i, ie := range ies {
		if decoded.Ordered[i].Type != ie.Type {
			t.Errorf("Ordered[%d].Type = 0x%02x, want 0x%02x", i, decoded.Ordered[i].Type, ie.Type)
		}
	}
}

package packet

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseNotificationExample(t *testing.T) {
	payload := []byte{
		0x80, 0x10, 0x10, // source
		0x20, 0x00, 0x00, // destination
		0xC0,       // packet_info
		0x14,       // type byte: Normal/Notification
		0x05,       // packet_number
		0x01,       // message_count
		0x40, 0x00, // id 0x4000 (Enum kind)
		0x01, // value
	}

	p, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if p.PacketType != PacketTypeNormal {
		t.Fatalf("packet type = %v, want Normal", p.PacketType)
	}
	if p.DataType != DataTypeNotification {
		t.Fatalf("data type = %v, want Notification", p.DataType)
	}
	if len(p.Data.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(p.Data.Messages))
	}
	m := p.Data.Messages[0]
	if m.Id != 0x4000 {
		t.Fatalf("message id = %x, want 4000", uint16(m.Id))
	}
	v, err := m.Value.ExpectEnum()
	if err != nil || v != 1 {
		t.Fatalf("message value = %v (%v), want Enum(1)", m.Value, err)
	}

	pi := PacketInfoFromByte(0xC0)
	if pi.Info != 1 || pi.ProtocolVersion != 2 || pi.RetryCount != 0 {
		t.Fatalf("unexpected packet info: %+v", pi)
	}
}

func TestRoundTrip(t *testing.T) {
	pkt := &Packet{
		Source:       Address{0x80, 0x10, 0x10},
		Destination:  Address{0x20, 0x00, 0x00},
		PacketInfo:   DefaultPacketInfo(),
		PacketType:   PacketTypeNormal,
		DataType:     DataTypeNotification,
		PacketNumber: 5,
		Data: Data{Messages: []Message{
			{Id: 0x4000, Value: NewEnumValue(1)},
			{Id: 0x4201, Value: NewVariableValue(0x00F0)},
			{Id: 0x8400, Value: NewLongVariableValue(0xDEADBEEF)},
		}},
	}

	buf := make([]byte, pkt.SerializedSize())
	n, err := pkt.Serialize(buf)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Parse(buf[:n])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got.Source != pkt.Source || got.Destination != pkt.Destination {
		t.Fatalf("address mismatch: %+v", got)
	}
	if got.PacketNumber != pkt.PacketNumber {
		t.Fatalf("packet number mismatch")
	}
	if !bytes.Equal(messageBytes(got.Data.Messages), messageBytes(pkt.Data.Messages)) {
		t.Fatalf("messages mismatch: got %+v want %+v", got.Data.Messages, pkt.Data.Messages)
	}
}

func messageBytes(msgs []Message) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, byte(m.Id>>8), byte(m.Id))
		switch m.Value.Kind {
		case MessageKindEnum:
			out = append(out, m.Value.EnumValue)
		case MessageKindVariable:
			out = append(out, byte(m.Value.Variable>>8), byte(m.Value.Variable))
		case MessageKindLongVariable:
			out = append(out, byte(m.Value.LongVariable>>24), byte(m.Value.LongVariable>>16),
				byte(m.Value.LongVariable>>8), byte(m.Value.LongVariable))
		}
	}
	return out
}

func TestEmptyMessageCount(t *testing.T) {
	payload := []byte{
		0x80, 0x10, 0x10,
		0x20, 0x00, 0x00,
		0xA0,
		0x14,
		0x05,
		0x00, // message_count = 0
	}
	p, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Data.IsStructure() {
		t.Fatalf("expected messages, got structure")
	}
	if len(p.Data.Messages) != 0 {
		t.Fatalf("expected empty message list, got %d", len(p.Data.Messages))
	}
}

func TestStructureBoundary(t *testing.T) {
	header := []byte{
		0x80, 0x10, 0x10,
		0x20, 0x00, 0x00,
		0xA0,
		0x14,
		0x05,
		0x01,       // message_count = 1
		0x0E, 0x00, // structure-kind id (bits 10-9 = 3 => 0x0600 range; use 0x0E00)
	}

	ok := append(append([]byte{}, header...), make([]byte, 256)...)
	p, err := Parse(ok)
	if err != nil {
		t.Fatalf("parse 256-byte structure: %v", err)
	}
	if !p.Data.IsStructure() || len(p.Data.Structure.Data) != 256 {
		t.Fatalf("expected 256-byte structure, got %+v", p.Data)
	}

	tooLong := append(append([]byte{}, header...), make([]byte, 257)...)
	_, err = Parse(tooLong)
	if !errors.Is(err, ErrStructureTooLong) {
		t.Fatalf("expected ErrStructureTooLong, got %v", err)
	}
}

func TestUnknownPacketType(t *testing.T) {
	payload := []byte{
		0x80, 0x10, 0x10,
		0x20, 0x00, 0x00,
		0xA0,
		0x54, // packet type nibble 5: unknown
		0x05,
		0x00,
	}
	_, err := Parse(payload)
	if !errors.Is(err, ErrUnknownPacketType) {
		t.Fatalf("expected ErrUnknownPacketType, got %v", err)
	}
}

func TestSerializeInvalidMessageValue(t *testing.T) {
	pkt := &Packet{
		Source:       Address{},
		Destination:  Address{},
		PacketInfo:   DefaultPacketInfo(),
		PacketType:   PacketTypeNormal,
		DataType:     DataTypeRead,
		PacketNumber: 1,
		Data: Data{Messages: []Message{
			{Id: 0x4000, Value: NewVariableValue(1)}, // 0x4000 is Enum kind, value is Variable
		}},
	}
	buf := make([]byte, 64)
	_, err := pkt.Serialize(buf)
	if !errors.Is(err, ErrInvalidMessageValue) {
		t.Fatalf("expected ErrInvalidMessageValue, got %v", err)
	}
}

func TestAddressString(t *testing.T) {
	a := Address{0x80, 0x10, 0x10}
	if a.String() != "80.10.10" {
		t.Fatalf("unexpected address string: %s", a.String())
	}
}

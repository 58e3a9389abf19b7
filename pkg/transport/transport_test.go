package transport

import (
	"io"
	"testing"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	pr, pw := io.Pipe()

	sender := NewSender(pw)
	receiver := NewReceiver(pr)

	pkt := &packet.Packet{
		Source:       packet.Address{Class: 0x80, Channel: 0x10, Address: 0x10},
		Destination:  packet.Address{Class: 0x20, Channel: 0x00, Address: 0x00},
		PacketInfo:   packet.DefaultPacketInfo(),
		PacketType:   packet.PacketTypeNormal,
		DataType:     packet.DataTypeNotification,
		PacketNumber: 7,
		Data: packet.Data{Messages: []packet.Message{
			{Id: 0x4000, Value: packet.NewEnumValue(1)},
		}},
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(pkt) }()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.Source != pkt.Source || got.PacketNumber != pkt.PacketNumber {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Data.Messages) != 1 || got.Data.Messages[0].Id != 0x4000 {
		t.Fatalf("unexpected messages: %+v", got.Data.Messages)
	}
}

func TestReceiveEOF(t *testing.T) {
	pr, pw := io.Pipe()
	receiver := NewReceiver(pr)
	pw.Close()

	_, err := receiver.Receive()
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

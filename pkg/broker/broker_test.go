package broker

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/transport"
)

func examplePacket(number byte) *packet.Packet {
	return &packet.Packet{
		Source:       packet.Address{Class: 0x20, Channel: 0x00, Address: 0x00},
		Destination:  packet.Address{Class: 0xb0, Channel: 0x00, Address: 0x00},
		PacketInfo:   packet.DefaultPacketInfo(),
		PacketType:   packet.PacketTypeNormal,
		DataType:     packet.DataTypeNotification,
		PacketNumber: number,
		Data: packet.Data{Messages: []packet.Message{
			{Id: 0x4203, Value: packet.NewVariableValue(235)},
		}},
	}
}

// TestFanOutExcludesOrigin exercises invariant 5: a packet received
// from peer i is never forwarded back to peer i, but is forwarded to
// every other connected peer.
func TestFanOutExcludesOrigin(t *testing.T) {
	b := New()

	connA, remoteA := net.Pipe()
	connB, remoteB := net.Pipe()
	connC, remoteC := net.Pipe()

	pA := b.addPeer(false, connA)
	b.addPeer(false, connB)
	b.addPeer(false, connC)

	pkt := examplePacket(1)

	b.fanOut(pA.id, pkt)

	recvB := transport.NewReceiver(remoteB)
	recvC := transport.NewReceiver(remoteC)

	for _, recv := range []*transport.Receiver{recvB, recvC} {
		got, err := recv.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if got.PacketNumber != pkt.PacketNumber {
			t.Fatalf("got packet #%d, want #%d", got.PacketNumber, pkt.PacketNumber)
		}
	}

	// remoteA must see nothing: read with a short deadline.
	remoteA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := remoteA.Read(buf); err == nil {
		t.Fatal("origin peer received its own packet back")
	}
}

// TestSlowPeerQueueDrop exercises the bounded-queue drop policy: once a
// peer's outbound queue is full, further enqueues are dropped rather
// than blocking.
func TestSlowPeerQueueDrop(t *testing.T) {
	conn, _ := net.Pipe()
	p := newPeer(0, false, conn)
	// No writeLoop running, so p.out is never drained.

	for i := 0; i < outboundQueueSize; i++ {
		p.enqueue([]byte{byte(i)})
	}
	if got := len(p.out); got != outboundQueueSize {
		t.Fatalf("queue length = %d, want %d", got, outboundQueueSize)
	}

	// One more enqueue must be dropped silently, not block.
	done := make(chan struct{})
	go func() {
		p.enqueue([]byte{0xff})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue on a full queue blocked")
	}
	if got := len(p.out); got != outboundQueueSize {
		t.Fatalf("queue length after overflow = %d, want unchanged %d", got, outboundQueueSize)
	}
}

// TestBusDisconnectEndsBroker verifies that the broker exits once the
// bus peer's stream ends.
func TestBusDisconnectEndsBroker(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "bus")

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer os.Remove(sockPath)

	busSide, deviceSide := net.Pipe()

	b := New()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background(), busSide, listener) }()

	deviceSide.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error when the bus connection ends")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not exit after bus disconnect")
	}
}

// Package broker implements the local bus multiplexer: it owns the
// serial device (or any ReadWriteCloser standing in for it) and fans
// out every packet it sees to all other connected peers, without
// letting a slow peer block delivery to the rest.
package broker

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/librescoot/samsunghvac/pkg/nasa/frame"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/transport"
)

// outboundQueueSize bounds each peer's pending-write queue. Overflow is
// a silent drop, never a block on the sender.
const outboundQueueSize = 8

// peer is one connected endpoint: the bus itself, or a local socket
// client. Each peer has its own reader and writer goroutine; the two
// only communicate with the broker's multiplex loop, never with each
// other directly.
type peer struct {
	id        int
	isBus     bool
	conn      transport.ReadWriteCloser
	recv      *transport.Receiver
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(id int, isBus bool, conn transport.ReadWriteCloser) *peer {
	return &peer{
		id:    id,
		isBus: isBus,
		conn:  conn,
		recv:  transport.NewReceiver(conn),
		out:   make(chan []byte, outboundQueueSize),
		done:  make(chan struct{}),
	}
}

// markDone signals writeLoop to stop and closes the underlying conn,
// unblocking any in-flight Receive in readLoop. Safe to call more than
// once or concurrently with enqueue.
func (p *peer) markDone() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// writeLoop drains the outbound queue until markDone is called or a
// write fails.
func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case wireFrame := <-p.out:
			if _, err := p.conn.Write(wireFrame); err != nil {
				log.Printf("broker: peer %d write: %v", p.id, err)
				p.markDone()
				return
			}
		}
	}
}

// enqueue is the non-blocking send described by the spec: if the
// peer's queue is full, the frame is dropped for that peer only.
func (p *peer) enqueue(wireFrame []byte) {
	select {
	case p.out <- wireFrame:
	default:
		log.Printf("broker: peer %d outbound queue full, dropping packet", p.id)
	}
}

type inboundEvent struct {
	peerID int
	pkt    *packet.Packet
}

// Broker owns the peer set and the single multiplex loop that fans
// packets out across it.
type Broker struct {
	mu      sync.Mutex
	peers   map[int]*peer
	nextID  int
	inbound chan inboundEvent
	gone    chan int
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{
		peers:   make(map[int]*peer),
		inbound: make(chan inboundEvent, outboundQueueSize),
		gone:    make(chan int, 64),
	}
}

func (b *Broker) addPeer(isBus bool, conn transport.ReadWriteCloser) *peer {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	p := newPeer(id, isBus, conn)
	b.peers[id] = p
	b.mu.Unlock()

	go p.writeLoop()
	go b.readLoop(p)

	return p
}

// readLoop is a peer's dedicated inbound task: it blocks on Receive,
// forwards every parsed packet to the central multiplex loop, and
// reports the peer dead when the stream ends.
func (b *Broker) readLoop(p *peer) {
	for {
		pkt, err := p.recv.Receive()
		if err != nil {
			b.gone <- p.id
			return
		}
		b.inbound <- inboundEvent{peerID: p.id, pkt: pkt}
	}
}

func (b *Broker) removePeer(id int) {
	b.mu.Lock()
	p, ok := b.peers[id]
	if ok {
		delete(b.peers, id)
	}
	isBus := ok && p.isBus
	b.mu.Unlock()

	if ok {
		p.markDone()
	}
	if isBus {
		log.Printf("broker: bus peer disconnected, shutting down")
	}
}

// fanOut re-serializes pkt (the mandated validation round-trip) and
// enqueues the resulting frame to every peer except origin.
func (b *Broker) fanOut(origin int, pkt *packet.Packet) {
	payloadBuf := make([]byte, pkt.SerializedSize())
	n, err := pkt.Serialize(payloadBuf)
	if err != nil {
		log.Printf("broker: dropping unserializable packet from peer %d: %v", origin, err)
		return
	}

	wireFrame, err := serializeFrame(payloadBuf[:n])
	if err != nil {
		log.Printf("broker: dropping packet from peer %d: %v", origin, err)
		return
	}

	b.mu.Lock()
	targets := make([]*peer, 0, len(b.peers))
	for id, p := range b.peers {
		if id == origin {
			continue
		}
		targets = append(targets, p)
	}
	b.mu.Unlock()

	for _, p := range targets {
		p.enqueue(wireFrame)
	}
}

// Run owns the accept loop and the multiplex loop. It blocks until the
// bus connection ends or ctx is cancelled, at which point it closes the
// listener and every connected peer.
func (b *Broker) Run(ctx context.Context, bus transport.ReadWriteCloser, listener net.Listener) error {
	busPeer := b.addPeer(true, bus)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			b.addPeer(false, conn)
		}
	}()

	defer func() {
		listener.Close()
		b.mu.Lock()
		ids := make([]int, 0, len(b.peers))
		for id := range b.peers {
			ids = append(ids, id)
		}
		b.mu.Unlock()
		for _, id := range ids {
			b.removePeer(id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case id := <-b.gone:
			b.removePeer(id)
			if id == busPeer.id {
				return fmt.Errorf("broker: bus connection closed")
			}

		case ev := <-b.inbound:
			b.fanOut(ev.peerID, ev.pkt)
		}
	}
}

func serializeFrame(payload []byte) ([]byte, error) {
	buf := make([]byte, 4+1+2+len(payload)+2+1)
	n, err := frame.Serialize(buf, payload)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

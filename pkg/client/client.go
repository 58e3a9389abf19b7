// Package client implements the NASA bus request/reply engine: Read and
// Request exchanges with bounded retries, packet-number demultiplexing
// of replies, and notification delivery into a watch registry.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/librescoot/samsunghvac/pkg/nasa/message"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/transport"
	"github.com/librescoot/samsunghvac/pkg/watch"
)

// DefaultLocalAddress is the address the client sources its own packets
// from unless overridden.
var DefaultLocalAddress = packet.Address{Class: 0x80, Channel: 0x10, Address: 0x10}

const (
	replyTimeout  = time.Second
	maxRetryCount = 3 // retry_count is a 2-bit field, max value 3
)

// Client errors.
var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrLostTransport      = errors.New("lost transport")
)

// NackError is returned when the bus replies to a request with a Nack
// packet. The offending reply is retained for inspection.
type NackError struct {
	Packet *packet.Packet
}

func (e NackError) Error() string {
	return fmt.Sprintf("nack from %v (packet #%d)", e.Packet.Source, e.Packet.PacketNumber)
}

// UnexpectedReplyError is returned when a reply's data type is neither
// the expected one nor Nack.
type UnexpectedReplyError struct {
	Expected packet.DataType
	Actual   packet.DataType
}

func (e UnexpectedReplyError) Error() string {
	return fmt.Sprintf("unexpected reply: expected %v, got %v", e.Expected, e.Actual)
}

// Client issues Read/Request exchanges against the bus and dispatches
// Notification traffic to a Watch registry.
type Client struct {
	transport *transport.Transport
	localAddr packet.Address
	watches   *watch.Registry

	writerMu sync.Mutex

	waitingMu sync.Mutex
	waiting   map[byte]chan *packet.Packet

	counterMu    sync.Mutex
	packetNumber byte

	recvDone chan struct{}
	recvErr  error
}

// New wraps an already-open transport as a request/reply client sourcing
// packets as DefaultLocalAddress, and starts its receive-dispatch loop.
func New(t *transport.Transport) *Client {
	c := &Client{
		transport: t,
		localAddr: DefaultLocalAddress,
		watches:   watch.New(),
		waiting:   make(map[byte]chan *packet.Packet),
		recvDone:  make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Watches exposes the client's notification registry, e.g. for
// subscribing to typed messages.
func (c *Client) Watches() *watch.Registry {
	return c.watches
}

// LocalAddress returns the address the client sources packets from.
func (c *Client) LocalAddress() packet.Address {
	return c.localAddr
}

// SetLocalAddress overrides the default source address. Must be called
// before issuing any exchange.
func (c *Client) SetLocalAddress(addr packet.Address) {
	c.localAddr = addr
}

// Close stops the client's receive loop and closes the underlying
// transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) nextPacketNumber() byte {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	n := c.packetNumber
	c.packetNumber++
	return n
}

// receiveLoop reads packets forever, dispatching notifications to the
// watch registry and replies to waiting requesters. It exits when the
// transport's Receive returns a terminal error (EOF or I/O failure),
// at which point every still-waiting requester is unblocked with
// ErrLostTransport.
func (c *Client) receiveLoop() {
	defer close(c.recvDone)

	for {
		pkt, err := c.transport.Recv.Receive()
		if err != nil {
			c.recvErr = err
			c.failAllWaiting()
			return
		}

		c.dispatch(pkt)
	}
}

func (c *Client) dispatch(pkt *packet.Packet) {
	if pkt.PacketType != packet.PacketTypeNormal {
		return
	}
	if pkt.Data.IsStructure() {
		return
	}

	switch pkt.DataType {
	case packet.DataTypeNotification:
		c.watches.Notify(pkt.Source, pkt.Data.Messages)

	case packet.DataTypeAck, packet.DataTypeNack, packet.DataTypeResponse:
		if pkt.Destination != c.localAddr {
			return
		}
		c.completeWaiting(pkt.PacketNumber, pkt)
	}
}

func (c *Client) completeWaiting(packetNumber byte, pkt *packet.Packet) {
	c.waitingMu.Lock()
	ch, ok := c.waiting[packetNumber]
	if ok {
		delete(c.waiting, packetNumber)
	}
	c.waitingMu.Unlock()

	if !ok {
		log.Printf("client: dropping late reply for packet #%d", packetNumber)
		return
	}

	ch <- pkt
}

func (c *Client) failAllWaiting() {
	c.waitingMu.Lock()
	defer c.waitingMu.Unlock()
	for num, ch := range c.waiting {
		close(ch)
		delete(c.waiting, num)
	}
}

func (c *Client) insertWaiting(packetNumber byte) chan *packet.Packet {
	ch := make(chan *packet.Packet, 1)
	c.waitingMu.Lock()
	c.waiting[packetNumber] = ch
	c.waitingMu.Unlock()
	return ch
}

func (c *Client) removeWaiting(packetNumber byte) {
	c.waitingMu.Lock()
	delete(c.waiting, packetNumber)
	c.waitingMu.Unlock()
}

// sendWithRetry implements the exchange-with-retry algorithm of the
// bus protocol: insert a waiting slot, send, wait up to replyTimeout,
// and on timeout resend with an incremented retry_count up to
// maxRetryCount, reusing the same packet_number throughout.
func (c *Client) sendWithRetry(ctx context.Context, pkt *packet.Packet) (*packet.Packet, error) {
	packetNumber := pkt.PacketNumber
	replyCh := c.insertWaiting(packetNumber)
	defer c.removeWaiting(packetNumber)

	for {
		c.writerMu.Lock()
		err := c.transport.Send.Send(pkt)
		c.writerMu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("client: send: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case reply, ok := <-replyCh:
			if !ok {
				return nil, ErrLostTransport
			}
			return reply, nil

		case <-time.After(replyTimeout):
			if pkt.PacketInfo.RetryCount >= maxRetryCount {
				return nil, fmt.Errorf("%w: packet #%d", ErrMaxRetriesExceeded, packetNumber)
			}
			pkt.PacketInfo.RetryCount++
		}
	}
}

func (c *Client) exchange(ctx context.Context, destination packet.Address, dataType packet.DataType, messages []packet.Message, expect packet.DataType) (MessageSet, error) {
	pkt := &packet.Packet{
		Source:       c.localAddr,
		Destination:  destination,
		PacketInfo:   packet.DefaultPacketInfo(),
		PacketType:   packet.PacketTypeNormal,
		DataType:     dataType,
		PacketNumber: c.nextPacketNumber(),
		Data:         packet.Data{Messages: messages},
	}

	reply, err := c.sendWithRetry(ctx, pkt)
	if err != nil {
		return MessageSet{}, err
	}

	switch reply.DataType {
	case expect:
		return NewMessageSet(reply.Data.Messages), nil
	case packet.DataTypeNack:
		return MessageSet{}, NackError{Packet: reply}
	default:
		return MessageSet{}, UnexpectedReplyError{Expected: expect, Actual: reply.DataType}
	}
}

// sentinel values for Read requests, per message kind.
const (
	sentinelEnum         = 0xFF
	sentinelVariable     = 0xFFFF
	sentinelLongVariable = 0xFFFFFFFF
)

// Read issues a Read exchange for the given message ids at address,
// expecting a Response reply, and returns the reply's message set.
func (c *Client) Read(ctx context.Context, address packet.Address, ids []packet.MessageId) (MessageSet, error) {
	messages := make([]packet.Message, 0, len(ids))
	for _, id := range ids {
		switch id.Kind() {
		case packet.MessageKindEnum:
			messages = append(messages, packet.Message{Id: id, Value: packet.NewEnumValue(sentinelEnum)})
		case packet.MessageKindVariable:
			messages = append(messages, packet.Message{Id: id, Value: packet.NewVariableValue(sentinelVariable)})
		case packet.MessageKindLongVariable:
			messages = append(messages, packet.Message{Id: id, Value: packet.NewLongVariableValue(sentinelLongVariable)})
		case packet.MessageKindStructure:
			// structures carry no value to read; skipped per protocol.
		}
	}

	return c.exchange(ctx, address, packet.DataTypeRead, messages, packet.DataTypeResponse)
}

// Request issues a Request exchange carrying messages at address,
// expecting an Ack reply, and returns the reply's message set.
func (c *Client) Request(ctx context.Context, address packet.Address, messages []packet.Message) (MessageSet, error) {
	return c.exchange(ctx, address, packet.DataTypeRequest, messages, packet.DataTypeAck)
}

// ReadTyped is a convenience wrapper that issues a Read for a single
// typed message descriptor and decodes the reply.
func ReadTyped[R message.ValueRepr, T message.ValueType[R]](ctx context.Context, c *Client, address packet.Address, d message.Descriptor[R, T]) (T, error) {
	reply, err := c.Read(ctx, address, []packet.MessageId{d.ID})
	if err != nil {
		var zero T
		return zero, err
	}
	return TryGet(reply, d)
}

// RequestTyped is a convenience wrapper that issues a Request carrying a
// single typed message.
func RequestTyped[R message.ValueRepr, T message.ValueType[R]](ctx context.Context, c *Client, address packet.Address, d message.Descriptor[R, T], value T) error {
	_, err := c.Request(ctx, address, []packet.Message{d.New(value)})
	return err
}

// ReloadWatches snapshots every (address, ids) pair currently
// registered in the client's watch registry and issues a Read against
// each address for its watched ids, feeding each reply back into the
// registry as if it had arrived as a Notification. This refreshes
// every live subscription on demand instead of waiting for the bus's
// own notification cadence. A Read failure for one address is logged
// and does not prevent the others from being refreshed.
func (c *Client) ReloadWatches(ctx context.Context) error {
	var firstErr error
	for address, ids := range c.watches.AllWatches() {
		reply, err := c.Read(ctx, address, ids)
		if err != nil {
			log.Printf("client: reload watches for %v: %v", address, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.watches.Notify(address, reply.Messages())
	}
	return firstErr
}

// Package packet implements the NASA bus packet codec: parsing and
// serializing the structured datagram carried inside a frame payload
// (see pkg/nasa/frame).
package packet

import (
	"errors"
	"fmt"
)

// MaxMessageCount is the largest number of messages a packet may carry.
const MaxMessageCount = 255

// MaxStructureSize is the largest byte span a Structure payload may
// span.
const MaxStructureSize = 256

// PacketType is the high nibble of the packet's type byte.
type PacketType byte

const (
	PacketTypeStandBy   PacketType = 0
	PacketTypeNormal    PacketType = 1
	PacketTypeGathering PacketType = 2
	PacketTypeInstall   PacketType = 3
	PacketTypeDownload  PacketType = 4
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeStandBy:
		return "StandBy"
	case PacketTypeNormal:
		return "Normal"
	case PacketTypeGathering:
		return "Gathering"
	case PacketTypeInstall:
		return "Install"
	case PacketTypeDownload:
		return "Download"
	default:
		return fmt.Sprintf("PacketType(%d)", byte(t))
	}
}

// DataType is the low nibble of the packet's type byte.
type DataType byte

const (
	DataTypeUndefined    DataType = 0
	DataTypeRead         DataType = 1
	DataTypeWrite        DataType = 2
	DataTypeRequest      DataType = 3
	DataTypeNotification DataType = 4
	DataTypeResponse     DataType = 5
	DataTypeAck          DataType = 6
	DataTypeNack         DataType = 7
)

func (t DataType) String() string {
	switch t {
	case DataTypeUndefined:
		return "Undefined"
	case DataTypeRead:
		return "Read"
	case DataTypeWrite:
		return "Write"
	case DataTypeRequest:
		return "Request"
	case DataTypeNotification:
		return "Notification"
	case DataTypeResponse:
		return "Response"
	case DataTypeAck:
		return "Ack"
	case DataTypeNack:
		return "Nack"
	default:
		return fmt.Sprintf("DataType(%d)", byte(t))
	}
}

// PacketInfo is the bit-packed metadata byte: info bit, protocol
// version, retry counter, and three reserved bits.
type PacketInfo struct {
	Info            byte // 1 bit, expected 1
	ProtocolVersion byte // 2 bits, expected 2
	RetryCount      byte // 2 bits, 0-3
	Reserved        byte // 3 bits, expected 0
}

// DefaultPacketInfo returns a PacketInfo with info=1, protocol_version=2,
// retry_count=0, reserved=0 — the value new outbound packets should
// carry before any retries.
func DefaultPacketInfo() PacketInfo {
	return PacketInfo{Info: 1, ProtocolVersion: 2, RetryCount: 0, Reserved: 0}
}

// WithRetryCount returns a copy of the PacketInfo with RetryCount set.
func (pi PacketInfo) WithRetryCount(n byte) PacketInfo {
	pi.RetryCount = n
	return pi
}

// PacketInfoFromByte decodes a PacketInfo from its wire byte.
func PacketInfoFromByte(b byte) PacketInfo {
	return PacketInfo{
		Info:            b >> 7,
		ProtocolVersion: (b & 0x60) >> 5,
		RetryCount:      (b & 0x18) >> 3,
		Reserved:        b & 0x07,
	}
}

// Byte encodes the PacketInfo to its wire byte. The reserved bits are
// always emitted as zero regardless of the Reserved field's value.
func (pi PacketInfo) Byte() byte {
	return (pi.Info&0x01)<<7 | (pi.ProtocolVersion&0x03)<<5 | (pi.RetryCount&0x03)<<3
}

// MessageKind is the value-shape encoded in bits 10-9 of a MessageId.
type MessageKind byte

const (
	MessageKindEnum         MessageKind = 0
	MessageKindVariable     MessageKind = 1
	MessageKindLongVariable MessageKind = 2
	MessageKindStructure    MessageKind = 3
)

// MessageId is a 16-bit message identifier. Bits 10-9 encode its Kind.
type MessageId uint16

// Kind returns the MessageKind encoded in this id.
func (id MessageId) Kind() MessageKind {
	return MessageKind((id & 0x0600) >> 9)
}

func (id MessageId) String() string {
	return fmt.Sprintf("%04x", uint16(id))
}

// Value is a tagged union over a message's decoded value. Exactly one of
// the three fields is meaningful, selected by Kind.
type Value struct {
	Kind         MessageKind
	EnumValue    uint8
	Variable     uint16
	LongVariable uint32
}

// NewEnumValue constructs an Enum-kind Value.
func NewEnumValue(v uint8) Value { return Value{Kind: MessageKindEnum, EnumValue: v} }

// NewVariableValue constructs a Variable-kind Value.
func NewVariableValue(v uint16) Value { return Value{Kind: MessageKindVariable, Variable: v} }

// NewLongVariableValue constructs a LongVariable-kind Value.
func NewLongVariableValue(v uint32) Value { return Value{Kind: MessageKindLongVariable, LongVariable: v} }

// ErrWrongValueKind is returned when a typed message accessor is applied
// to a Value of the wrong Kind.
var ErrWrongValueKind = errors.New("wrong value kind")

// ExpectEnum returns the Enum value, or ErrWrongValueKind.
func (v Value) ExpectEnum() (uint8, error) {
	if v.Kind != MessageKindEnum {
		return 0, fmt.Errorf("%w: expected Enum, got %v", ErrWrongValueKind, v.Kind)
	}
	return v.EnumValue, nil
}

// ExpectVariable returns the Variable value, or ErrWrongValueKind.
func (v Value) ExpectVariable() (uint16, error) {
	if v.Kind != MessageKindVariable {
		return 0, fmt.Errorf("%w: expected Variable, got %v", ErrWrongValueKind, v.Kind)
	}
	return v.Variable, nil
}

// ExpectLongVariable returns the LongVariable value, or ErrWrongValueKind.
func (v Value) ExpectLongVariable() (uint32, error) {
	if v.Kind != MessageKindLongVariable {
		return 0, fmt.Errorf("%w: expected LongVariable, got %v", ErrWrongValueKind, v.Kind)
	}
	return v.LongVariable, nil
}

func (v Value) String() string {
	switch v.Kind {
	case MessageKindEnum:
		return fmt.Sprintf("0x%02x (%d)", v.EnumValue, v.EnumValue)
	case MessageKindVariable:
		return fmt.Sprintf("0x%04x (%d)", v.Variable, v.Variable)
	case MessageKindLongVariable:
		return fmt.Sprintf("0x%08x (%d)", v.LongVariable, v.LongVariable)
	default:
		return fmt.Sprintf("Value(kind=%d)", v.Kind)
	}
}

// Message is an (id, value) pair. The value's Kind must match id.Kind().
type Message struct {
	Id    MessageId
	Value Value
}

// Structure is a variable-length raw payload carried as the sole
// content of a packet.
type Structure struct {
	Id   MessageId
	Data []byte
}

// Data holds a packet's payload: either an ordered list of Messages, or
// a single Structure. Exactly one of Messages/Structure is non-nil.
type Data struct {
	Messages  []Message
	Structure *Structure
}

// IsStructure reports whether this Data holds a Structure payload.
func (d Data) IsStructure() bool { return d.Structure != nil }

// Packet is the fully decoded NASA bus datagram.
type Packet struct {
	Source        Address
	Destination   Address
	PacketInfo    PacketInfo
	PacketType    PacketType
	DataType      DataType
	PacketNumber  byte
	Data          Data
}

// Parse errors.
var (
	ErrTooShort           = errors.New("packet too short")
	ErrUnknownPacketType  = errors.New("unknown packet type")
	ErrUnexpectedStructure = errors.New("unexpected structure")
	ErrStructureTooLong   = errors.New("structure too long")
)

// Serialize errors.
var (
	ErrInvalidMessageValue = errors.New("invalid message value")
)

// reader is a cursor over a packet payload buffer.
type reader struct {
	data []byte
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if len(r.data) < n {
		return nil, ErrTooShort
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b, nil
}

func (r *reader) readU8() (byte, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Parse decodes a Packet from a frame payload.
func Parse(data []byte) (*Packet, error) {
	r := &reader{data: data}

	srcBytes, err := r.readBytes(3)
	if err != nil {
		return nil, err
	}
	dstBytes, err := r.readBytes(3)
	if err != nil {
		return nil, err
	}

	infoByte, err := r.readU8()
	if err != nil {
		return nil, err
	}

	typeByte, err := r.readU8()
	if err != nil {
		return nil, err
	}
	packetType := PacketType(typeByte >> 4)
	switch packetType {
	case PacketTypeStandBy, PacketTypeNormal, PacketTypeGathering, PacketTypeInstall, PacketTypeDownload:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacketType, packetType)
	}
	dataType := DataType(typeByte & 0x0f)

	packetNumber, err := r.readU8()
	if err != nil {
		return nil, err
	}

	messageCount, err := r.readU8()
	if err != nil {
		return nil, err
	}

	payload, err := readPayload(messageCount, r)
	if err != nil {
		return nil, err
	}

	return &Packet{
		Source:       AddressFromBytes([3]byte(srcBytes)),
		Destination:  AddressFromBytes([3]byte(dstBytes)),
		PacketInfo:   PacketInfoFromByte(infoByte),
		PacketType:   packetType,
		DataType:     dataType,
		PacketNumber: packetNumber,
		Data:         payload,
	}, nil
}

func readPayload(messageCount byte, r *reader) (Data, error) {
	messages := make([]Message, 0, messageCount)

	for i := byte(0); i < messageCount; i++ {
		idVal, err := r.readU16()
		if err != nil {
			return Data{}, err
		}
		id := MessageId(idVal)

		switch id.Kind() {
		case MessageKindEnum:
			v, err := r.readU8()
			if err != nil {
				return Data{}, err
			}
			messages = append(messages, Message{Id: id, Value: NewEnumValue(v)})

		case MessageKindVariable:
			v, err := r.readU16()
			if err != nil {
				return Data{}, err
			}
			messages = append(messages, Message{Id: id, Value: NewVariableValue(v)})

		case MessageKindLongVariable:
			v, err := r.readU32()
			if err != nil {
				return Data{}, err
			}
			messages = append(messages, Message{Id: id, Value: NewLongVariableValue(v)})

		case MessageKindStructure:
			if i != 0 || messageCount != 1 {
				return Data{}, ErrUnexpectedStructure
			}
			if len(r.data) > MaxStructureSize {
				return Data{}, fmt.Errorf("%w: %d bytes", ErrStructureTooLong, len(r.data))
			}
			raw := make([]byte, len(r.data))
			copy(raw, r.data)
			return Data{Structure: &Structure{Id: id, Data: raw}}, nil
		}
	}

	return Data{Messages: messages}, nil
}

// Serialize writes the wire encoding of the packet's payload (what goes
// inside a frame) into buf, returning the number of bytes written.
func (p *Packet) Serialize(buf []byte) (int, error) {
	n := 0

	srcBytes := p.Source.Bytes()
	n += copy(buf[n:], srcBytes[:])
	dstBytes := p.Destination.Bytes()
	n += copy(buf[n:], dstBytes[:])

	buf[n] = p.PacketInfo.Byte()
	n++

	buf[n] = byte(p.PacketType)<<4 | byte(p.DataType)&0x0f
	n++

	buf[n] = p.PacketNumber
	n++

	if p.Data.IsStructure() {
		s := p.Data.Structure
		buf[n] = 1
		n++
		buf[n] = byte(s.Id >> 8)
		buf[n+1] = byte(s.Id)
		n += 2
		n += copy(buf[n:], s.Data)
		return n, nil
	}

	messages := p.Data.Messages
	if len(messages) > MaxMessageCount {
		return 0, fmt.Errorf("%w: %d messages exceeds max %d", ErrInvalidMessageValue, len(messages), MaxMessageCount)
	}
	buf[n] = byte(len(messages))
	n++

	for _, m := range messages {
		if m.Value.Kind != m.Id.Kind() {
			return 0, fmt.Errorf("%w: message %s has value kind %v, id requires %v",
				ErrInvalidMessageValue, m.Id, m.Value.Kind, m.Id.Kind())
		}

		buf[n] = byte(m.Id >> 8)
		buf[n+1] = byte(m.Id)
		n += 2

		switch m.Value.Kind {
		case MessageKindEnum:
			buf[n] = m.Value.EnumValue
			n++
		case MessageKindVariable:
			buf[n] = byte(m.Value.Variable >> 8)
			buf[n+1] = byte(m.Value.Variable)
			n += 2
		case MessageKindLongVariable:
			buf[n] = byte(m.Value.LongVariable >> 24)
			buf[n+1] = byte(m.Value.LongVariable >> 16)
			buf[n+2] = byte(m.Value.LongVariable >> 8)
			buf[n+3] = byte(m.Value.LongVariable)
			n += 4
		default:
			return 0, fmt.Errorf("%w: message %s has unserializable kind %v", ErrInvalidMessageValue, m.Id, m.Value.Kind)
		}
	}

	return n, nil
}

// SerializedSize returns an upper bound on the number of bytes
// p.Serialize will need.
func (p *Packet) SerializedSize() int {
	// source(3) + dest(3) + info(1) + type(1) + number(1) + count(1)
	base := 10
	if p.Data.IsStructure() {
		return base + 2 + len(p.Data.Structure.Data)
	}
	size := base
	for _, m := range p.Data.Messages {
		switch m.Value.Kind {
		case MessageKindEnum:
			size += 2 + 1
		case MessageKindVariable:
			size += 2 + 2
		case MessageKindLongVariable:
			size += 2 + 4
		}
	}
	return size
}

// Package message provides a typed view over the untyped
// (id, Value) pairs decoded by pkg/nasa/packet: a small registry of
// known message ids paired with domain value types (temperatures,
// enums, booleans), mirroring the original protocol::message::convert
// trait pair (IsMessage/ValueType) as Go interfaces since Go has no
// const generics to key a type by a compile-time id.
package message

import (
	"fmt"
	"log"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

// ValueRepr is the wire representation width backing a ValueType: the
// raw uint8/uint16/uint32 a Value actually carries.
type ValueRepr interface {
	~uint8 | ~uint16 | ~uint32
}

// ValueType is a domain type that knows how to convert to and from one
// of the three wire representations.
type ValueType[R ValueRepr] interface {
	fmt.Stringer
	ToRepr() R
}

// Descriptor describes a single typed message: its wire id and how to
// decode/encode its value.
type Descriptor[R ValueRepr, T ValueType[R]] struct {
	ID      packet.MessageId
	FromRepr func(R) (T, error)
}

func valueToRepr[R ValueRepr](v packet.Value) (R, error) {
	var zero R
	switch any(zero).(type) {
	case uint8:
		u, err := v.ExpectEnum()
		if err != nil {
			return zero, err
		}
		return any(u).(R), nil
	case uint16:
		u, err := v.ExpectVariable()
		if err != nil {
			return zero, err
		}
		return any(u).(R), nil
	case uint32:
		u, err := v.ExpectLongVariable()
		if err != nil {
			return zero, err
		}
		return any(u).(R), nil
	default:
		return zero, fmt.Errorf("message: unsupported repr type %T", zero)
	}
}

func reprToValue[R ValueRepr](r R) packet.Value {
	switch v := any(r).(type) {
	case uint8:
		return packet.NewEnumValue(v)
	case uint16:
		return packet.NewVariableValue(v)
	case uint32:
		return packet.NewLongVariableValue(v)
	default:
		panic(fmt.Sprintf("message: unsupported repr type %T", r))
	}
}

// Get decodes msg's value as T if msg.Id matches d.ID, logging and
// returning false if the representation kind matches but conversion to
// the domain type fails (an out-of-range enum, for instance).
func (d Descriptor[R, T]) Get(msg packet.Message) (T, bool) {
	var zero T
	if msg.Id != d.ID {
		return zero, false
	}
	repr, err := valueToRepr[R](msg.Value)
	if err != nil {
		log.Printf("message %s: %v", d.ID, err)
		return zero, false
	}
	value, err := d.FromRepr(repr)
	if err != nil {
		log.Printf("message %s: deserializing repr %v: %v", d.ID, repr, err)
		return zero, false
	}
	return value, true
}

// New builds a wire Message carrying value encoded under this
// descriptor's id.
func (d Descriptor[R, T]) New(value T) packet.Message {
	return packet.Message{Id: d.ID, Value: reprToValue(value.ToRepr())}
}

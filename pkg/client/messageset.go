package client

import (
	"fmt"
	"strings"

	"github.com/librescoot/samsunghvac/pkg/nasa/message"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

// MessageSet is an ordered, read-only view over a packet's message
// list, with typed accessors keyed by message descriptors.
type MessageSet struct {
	messages []packet.Message
}

// NewMessageSet wraps a message list for typed access.
func NewMessageSet(messages []packet.Message) MessageSet {
	return MessageSet{messages: messages}
}

// Messages returns the underlying message list.
func (s MessageSet) Messages() []packet.Message {
	return s.messages
}

// Get returns the decoded value of the first message matching
// descriptor d, or false if no such message is present or it failed to
// decode.
func Get[R message.ValueRepr, T message.ValueType[R]](s MessageSet, d message.Descriptor[R, T]) (T, bool) {
	var zero T
	for _, m := range s.messages {
		if v, ok := d.Get(m); ok {
			return v, true
		}
	}
	return zero, false
}

// MissingMessage is returned by TryGet when no message satisfies the
// requested descriptor.
type MissingMessage struct {
	ID packet.MessageId
}

func (e MissingMessage) Error() string {
	return fmt.Sprintf("missing message: %s", e.ID)
}

// TryGet is Get, returning a MissingMessage error instead of false.
func TryGet[R message.ValueRepr, T message.ValueType[R]](s MessageSet, d message.Descriptor[R, T]) (T, error) {
	v, ok := Get(s, d)
	if !ok {
		var zero T
		return zero, MissingMessage{ID: d.ID}
	}
	return v, nil
}

func (s MessageSet) String() string {
	var b strings.Builder
	for i, m := range s.messages {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%v => %v", m.Id, m.Value)
	}
	return b.String()
}

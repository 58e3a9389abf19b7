package packet

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a NASA bus (class, channel, address) triple.
type Address struct {
	Class   byte
	Channel byte
	Address byte
}

// String renders the address as three two-digit lowercase hex groups,
// e.g. "80.10.10".
func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", a.Class, a.Channel, a.Address)
}

// Bytes returns the three-byte wire encoding of the address.
func (a Address) Bytes() [3]byte {
	return [3]byte{a.Class, a.Channel, a.Address}
}

// AddressFromBytes decodes a three-byte wire encoding into an Address.
func AddressFromBytes(b [3]byte) Address {
	return Address{Class: b[0], Channel: b[1], Address: b[2]}
}

// ParseAddress parses the "class.channel.address" hex-dotted form
// produced by String, for CLI argument handling.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("expected class.channel.address, got %q", s)
	}
	var b [3]byte
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("invalid hex byte %q: %w", p, err)
		}
		b[i] = byte(n)
	}
	return AddressFromBytes(b), nil
}

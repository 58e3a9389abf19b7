// Package pretty renders a parsed packet.Packet as a human-readable,
// optionally ANSI-colored debug line, mirroring the protocol's original
// pretty-printer.
package pretty

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

func colorFor(dt packet.DataType) string {
	switch dt {
	case packet.DataTypeUndefined:
		return ""
	case packet.DataTypeRead:
		return "\x1b[1;32m"
	case packet.DataTypeWrite:
		return "\x1b[1;33m"
	case packet.DataTypeRequest:
		return "\x1b[1;95m"
	case packet.DataTypeNotification:
		return "\x1b[2m"
	case packet.DataTypeResponse:
		return "\x1b[1;36m"
	case packet.DataTypeAck:
		return "\x1b[1;34m"
	case packet.DataTypeNack:
		return "\x1b[1;31m"
	default:
		return ""
	}
}

const colorReset = "\x1b[0m"

// UseColor reports whether w should receive ANSI color codes: w must be
// a terminal and NO_COLOR must not be set.
func UseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Sprint renders p as a multi-line string, with ANSI color if useColor
// is set.
func Sprint(p *packet.Packet, useColor bool) string {
	var b strings.Builder

	typColor, reset := "", ""
	if useColor {
		typColor = colorFor(p.DataType)
		reset = colorReset
	}

	fmt.Fprintf(&b, "%s%v%s #%d: %v => %v\n", typColor, p.DataType, reset, p.PacketNumber, p.Source, p.Destination)

	if p.PacketInfo.Info != 1 {
		fmt.Fprintln(&b, "  * packet_info: INFO BIT NOT SET")
	}
	if p.PacketInfo.Reserved != 0 {
		fmt.Fprintln(&b, "  * packet_info: RESERVED BITS NOT CLEAR")
	}
	if p.PacketInfo.ProtocolVersion != 2 {
		fmt.Fprintf(&b, "  * protocol_version: NOT 2, is: %d\n", p.PacketInfo.ProtocolVersion)
	}
	if p.PacketInfo.RetryCount != 0 {
		fmt.Fprintf(&b, "  * retry_count: %d\n", p.PacketInfo.RetryCount)
	}
	if p.PacketType != packet.PacketTypeNormal {
		fmt.Fprintf(&b, "  * packet_type: %v\n", p.PacketType)
	}

	if p.Data.IsStructure() {
		s := p.Data.Structure
		fmt.Fprintf(&b, "  %v => %x\n", s.Id, s.Data)
	} else if len(p.Data.Messages) == 0 {
		fmt.Fprintln(&b, "  (empty)")
	} else {
		for _, m := range p.Data.Messages {
			fmt.Fprintf(&b, "  %v => %v\n", m.Id, m.Value)
		}
	}

	return b.String()
}

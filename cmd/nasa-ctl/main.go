// Command nasa-ctl issues a single power on/off request against one
// address on the bus and prints a confirmation once it is acknowledged.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/librescoot/samsunghvac/pkg/client"
	"github.com/librescoot/samsunghvac/pkg/config"
	"github.com/librescoot/samsunghvac/pkg/nasa/message"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/transport"
)

var busPath = flag.String("bus", "", "bus socket or serial device (default: $SAMSUNGHVAC_BUS)")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if flag.NArg() != 2 {
		log.Fatalf("usage: nasa-ctl [-bus path] <address> <on|off>")
	}

	addr, err := packet.ParseAddress(flag.Arg(0))
	if err != nil {
		log.Fatalf("address: %v", err)
	}

	var power message.PowerSetting
	switch strings.ToLower(flag.Arg(1)) {
	case "on":
		power = message.PowerOn
	case "off":
		power = message.PowerOff
	default:
		log.Fatalf("command must be \"on\" or \"off\", got %q", flag.Arg(1))
	}

	path := config.BusPath(*busPath)
	t, err := transport.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}

	c := client.New(t)
	defer c.Close()

	ctx := context.Background()
	if err := client.RequestTyped(ctx, c, addr, message.Power, power); err != nil {
		log.Fatalf("request: %v", err)
	}

	fmt.Printf("%s: power set to %v\n", addr, power)
}

// Command busd is the local bus broker: it owns the serial connection
// to the HVAC bus and multiplexes it out to every client connected on
// the local socket.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/librescoot/samsunghvac/pkg/broker"
	"github.com/librescoot/samsunghvac/pkg/config"
	"github.com/librescoot/samsunghvac/pkg/transport"
)

var (
	socketPath = flag.String("l", "", "local socket path (default: $RUNTIME_DIRECTORY/bus)")
	verbose    = flag.Bool("v", false, "log every packet seen on the bus")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if flag.NArg() != 1 {
		log.Fatalf("usage: busd [-l socket] <serial-port>")
	}
	serialPort := flag.Arg(0)

	transport.Verbose = *verbose

	path := *socketPath
	if path == "" {
		path = config.RuntimeDir() + "/" + config.DefaultSocketName
	}

	log.Printf("opening bus device %s", serialPort)
	bus, err := transport.OpenSerial(serialPort)
	if err != nil {
		log.Fatalf("open bus device: %v", err)
	}
	defer bus.Close()

	os.Remove(path)
	listener, err := net.Listen("unix", path)
	if err != nil {
		log.Fatalf("listen on %s: %v", path, err)
	}
	defer os.Remove(path)
	log.Printf("listening on %s", path)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("shutting down...")
		cancel()
	}()

	b := broker.New()
	if err := b.Run(ctx, bus, listener); err != nil {
		log.Fatalf("broker exited: %v", err)
	}
}

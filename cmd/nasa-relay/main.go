// Command nasa-relay watches one or more message ids at given addresses
// and relays every update into Redis: the in-scope analogue of the
// MQTT bridge and Prometheus exporter the spec keeps out of scope.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/librescoot/samsunghvac/pkg/client"
	"github.com/librescoot/samsunghvac/pkg/config"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/relay"
	"github.com/librescoot/samsunghvac/pkg/transport"
)

var (
	busPath   = flag.String("bus", "", "bus socket or serial device (default: $SAMSUNGHVAC_BUS)")
	redisAddr = flag.String("redis-addr", "localhost:6379", "redis server address")
	redisDB   = flag.Int("redis-db", 0, "redis database number")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if flag.NArg() < 2 {
		log.Fatalf("usage: nasa-relay [-bus path] [-redis-addr host:port] [-redis-db n] <address> <message-id>...")
	}

	addr, err := packet.ParseAddress(flag.Arg(0))
	if err != nil {
		log.Fatalf("address: %v", err)
	}

	subs := make([]relay.Subscription, 0, flag.NArg()-1)
	for _, arg := range flag.Args()[1:] {
		id, err := parseMessageID(arg)
		if err != nil {
			log.Fatalf("message id %q: %v", arg, err)
		}
		subs = append(subs, relay.Subscription{Address: addr, ID: id})
	}

	path := config.BusPath(*busPath)
	t, err := transport.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}

	c := client.New(t)
	defer c.Close()

	redisClient, err := relay.New(*redisAddr, "", *redisDB)
	if err != nil {
		log.Fatalf("connect to redis: %v", err)
	}
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("shutting down...")
		cancel()
	}()

	log.Printf("relaying %d message(s) from %s to redis at %s", len(subs), addr, *redisAddr)
	relay.Bridge(ctx, c.Watches(), redisClient, subs)
}

func parseMessageID(s string) (packet.MessageId, error) {
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return packet.MessageId(n), nil
}

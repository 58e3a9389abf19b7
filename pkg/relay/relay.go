// Package relay bridges notification traffic observed on the NASA bus
// into Redis: every notified message of a subscribed (address, id) pair
// is HSET under a per-address hash and published on a per-address-and-id
// channel, so external services
// can subscribe without speaking the bus protocol themselves.
package relay

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/watch"
)

// Client wraps a Redis connection for the relay's publish/store needs.
type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// New connects to addr (host:port) and verifies the connection with a
// Ping before returning.
func New(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("relay: connect to redis: %w", err)
	}

	return &Client{rdb: rdb, ctx: ctx}, nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// hashKey is the per-address hash holding the last-seen value of every
// relayed id from that address.
func hashKey(addr packet.Address) string {
	return fmt.Sprintf("samsunghvac:%s", addr)
}

// channel is the per-(address, id) pub/sub channel a live watcher of a
// single register can subscribe to instead of polling the hash.
func channel(addr packet.Address, id packet.MessageId) string {
	return fmt.Sprintf("samsunghvac:%s:%s", addr, id)
}

// publishOne stores and publishes a single notified message.
func (c *Client) publishOne(addr packet.Address, m packet.Message) error {
	value := m.Value.String()

	pipe := c.rdb.Pipeline()
	pipe.HSet(c.ctx, hashKey(addr), m.Id.String(), value)
	pipe.Publish(c.ctx, channel(addr, m.Id), value)
	_, err := pipe.Exec(c.ctx)
	return err
}

// Subscription names one register to mirror into Redis.
type Subscription struct {
	Address packet.Address
	ID      packet.MessageId
}

// Bridge subscribes to each given (address, id) pair on r and relays
// every notified value into Redis until ctx is done. It logs and
// continues on a per-message publish error.
func Bridge(ctx context.Context, r *watch.Registry, client *Client, subs []Subscription) {
	watches := make([]*watch.Watch, len(subs))
	defer func() {
		for _, w := range watches {
			w.Close()
		}
	}()

	for i, sub := range subs {
		w := r.Subscribe(sub.Address, sub.ID)
		watches[i] = w
		go relayOne(ctx, client, sub.Address, sub.ID, w)
	}

	<-ctx.Done()
}

func relayOne(ctx context.Context, client *Client, addr packet.Address, id packet.MessageId, w *watch.Watch) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-w.C():
			if !ok {
				return
			}
			if err := client.publishOne(addr, packet.Message{Id: id, Value: v}); err != nil {
				log.Printf("relay: publish %s/%s: %v", addr, id, err)
			}
		}
	}
}

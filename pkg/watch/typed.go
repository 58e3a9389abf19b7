package watch

import (
	"github.com/librescoot/samsunghvac/pkg/nasa/message"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
)

// SubscribeTyped subscribes to a typed message descriptor at addr and
// returns a channel that receives the latest value that decodes
// successfully; a value the reader has not yet taken is replaced by the
// newer one. Values that fail to decode into T are skipped without
// closing the channel.
func SubscribeTyped[R message.ValueRepr, T message.ValueType[R]](r *Registry, addr packet.Address, d message.Descriptor[R, T]) (<-chan T, func()) {
	w := r.Subscribe(addr, d.ID)
	out := make(chan T, 1)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case v, ok := <-w.C():
				if !ok {
					close(out)
					return
				}
				msg := packet.Message{Id: d.ID, Value: v}
				if value, ok := d.Get(msg); ok {
					select {
					case out <- value:
					default:
						select {
						case <-out:
						default:
						}
						out <- value
					}
				}
			case <-stop:
				close(out)
				return
			}
		}
	}()

	return out, func() {
		close(stop)
		w.Close()
	}
}

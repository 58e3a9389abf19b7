// Package transport adapts the frame and packet codecs onto an
// io.Reader/io.Writer byte stream: a Unix stream socket to the broker,
// or a serial device for the broker's own bus connection.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"
	"time"

	"os"

	"github.com/librescoot/samsunghvac/pkg/nasa/frame"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/nasa/pretty"
	"go.bug.st/serial"
)

// Verbose, when set, makes Receive and Send log a pretty-printed line
// for every packet they see. Off by default so normal broker/client
// operation isn't drowned in bus chatter.
var Verbose = false

const baudRate = 9600

// Receiver reads framed packets off an underlying io.Reader. It logs and
// discards individual frame/packet parse errors; an I/O error or EOF
// terminates Receive permanently.
type Receiver struct {
	r       io.Reader
	parser  *frame.Parser
	buf     [1024]byte
	pending []byte // bytes read from r but not yet fed to parser
}

// NewReceiver wraps r for packet-at-a-time reading.
func NewReceiver(r io.Reader) *Receiver {
	return &Receiver{r: r, parser: frame.New()}
}

// Receive blocks until the next valid packet arrives, or returns the
// terminal I/O error (including io.EOF) when the stream ends.
func (rc *Receiver) Receive() (*packet.Packet, error) {
	for {
		var err error
		if len(rc.pending) == 0 {
			var n int
			n, err = rc.r.Read(rc.buf[:])
			if n == 0 && err != nil {
				return nil, err
			}
			rc.pending = rc.buf[:n]
		}

		for len(rc.pending) > 0 {
			b := rc.pending[0]
			rc.pending = rc.pending[1:]
			payload, ferr := rc.parser.Feed(b)
			if ferr != nil {
				log.Printf("transport: frame error: %v", ferr)
				continue
			}
			if payload == nil {
				continue
			}

			pkt, perr := packet.Parse(payload)
			if perr != nil {
				log.Printf("transport: packet error: %v", perr)
				continue
			}

			if Verbose {
				log.Printf("recv packet:\n%s", pretty.Sprint(pkt, pretty.UseColor(os.Stderr)))
			}

			return pkt, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

// Sender serializes and writes packets to an underlying io.Writer.
type Sender struct {
	w io.Writer
}

// NewSender wraps w for packet-at-a-time writing.
func NewSender(w io.Writer) *Sender {
	return &Sender{w: w}
}

// Send serializes pkt to a frame and writes it to the underlying stream.
func (s *Sender) Send(pkt *packet.Packet) error {
	if Verbose {
		log.Printf("send packet:\n%s", pretty.Sprint(pkt, pretty.UseColor(os.Stderr)))
	}

	payloadBuf := make([]byte, pkt.SerializedSize())
	n, err := pkt.Serialize(payloadBuf)
	if err != nil {
		return fmt.Errorf("transport: serialize packet: %w", err)
	}
	payload := payloadBuf[:n]

	frameBuf := make([]byte, 4+1+2+len(payload)+2+1)
	fn, err := frame.Serialize(frameBuf, payload)
	if err != nil {
		return fmt.Errorf("transport: serialize frame: %w", err)
	}

	if _, err := s.w.Write(frameBuf[:fn]); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}

	return nil
}

// ReadWriteCloser is satisfied by both a net.Conn and a serial.Port.
type ReadWriteCloser interface {
	io.Reader
	io.Writer
	io.Closer
}

// Transport pairs a Receiver and Sender over one underlying stream.
type Transport struct {
	conn ReadWriteCloser
	Recv *Receiver
	Send *Sender
}

// Close closes the underlying stream, unblocking any in-flight Receive.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Open implements the bus-path open policy: first try to connect as a
// Unix stream socket; if that's refused (not a socket at that path),
// fall back to opening path as a 9600-baud 8E1 serial device.
func Open(path string) (*Transport, error) {
	conn, err := net.Dial("unix", path)
	if err == nil {
		return wrap(conn), nil
	}

	if !errors.Is(err, syscall.ECONNREFUSED) {
		return nil, fmt.Errorf("transport: dial %s: %w", path, err)
	}

	port, err := OpenSerial(path)
	if err != nil {
		return nil, err
	}
	return wrap(port), nil
}

// OpenSerial opens path directly as a 9600-baud 8E1 serial device,
// with no socket fallback. Used by the broker, which always owns the
// real bus device rather than dialing for one.
func OpenSerial(path string) (ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", path, err)
	}
	_ = port.SetReadTimeout(time.Second)

	return port, nil
}

func wrap(conn ReadWriteCloser) *Transport {
	return &Transport{
		conn: conn,
		Recv: NewReceiver(conn),
		Send: NewSender(conn),
	}
}

// Wrap builds a Transport directly over an already-open stream, e.g. a
// net.Conn obtained some other way than Open's dial policy, or a pipe
// in tests.
func Wrap(conn ReadWriteCloser) *Transport {
	return wrap(conn)
}


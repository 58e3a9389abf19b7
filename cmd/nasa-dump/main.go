// Command nasa-dump reads framed bytes from stdin and pretty-prints
// every parsed packet, for offline analysis of captured bus traffic.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/librescoot/samsunghvac/pkg/nasa/frame"
	"github.com/librescoot/samsunghvac/pkg/nasa/packet"
	"github.com/librescoot/samsunghvac/pkg/nasa/pretty"
)

func main() {
	log.SetFlags(0)

	in := bufio.NewReader(os.Stdin)
	parser := frame.New()
	useColor := pretty.UseColor(os.Stdout)

	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			for _, b := range buf[:n] {
				payload, ferr := parser.Feed(b)
				if ferr != nil {
					fmt.Fprintf(os.Stderr, "frame error: %v\n", ferr)
					continue
				}
				if payload == nil {
					continue
				}

				pkt, perr := packet.Parse(payload)
				if perr != nil {
					fmt.Fprintf(os.Stderr, "packet error: %v\n", perr)
					continue
				}

				fmt.Print(pretty.Sprint(pkt, useColor))
			}
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			break
		}
	}
}

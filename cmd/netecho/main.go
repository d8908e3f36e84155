// Command netecho is a small demonstration of the netsock public API: a
// TCP echo server by default, or a UDP echo server with -udp, both bound to
// loopback.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/harish-agr/network-lib"
)

func main() {
	udp := flag.Bool("udp", false, "run a UDP datagram echo server instead of TCP")
	port := flag.Uint("port", 9000, "port to bind on 127.0.0.1")
	flag.Parse()

	mod := netsock.Initialize(netsock.Config{
		EventStreamSize: 1 << 16,
		Logger:          netsock.NewStdLogger(0),
	})
	defer mod.Finalize()

	addr, err := netsock.ParseAddress(fmt.Sprintf("127.0.0.1:%d", *port))
	if err != nil {
		log.Fatalf("netecho: invalid address: %v", err)
	}

	if *udp {
		if err := runUDPEcho(mod, addr); err != nil {
			log.Fatalf("netecho: %v", err)
		}
		return
	}
	if err := runTCPEcho(mod, addr); err != nil {
		log.Fatalf("netecho: %v", err)
	}
}

func runTCPEcho(mod *netsock.Module, addr netsock.Address) error {
	listener, err := mod.NewTCPSocket()
	if err != nil {
		return err
	}
	if err := mod.Bind(listener, addr); err != nil {
		return err
	}
	if err := mod.Listen(listener); err != nil {
		return err
	}

	local, _, _ := mod.LocalAddress(listener)
	fmt.Fprintf(os.Stdout, "netecho: tcp echo listening on %s\n", local.ToString(true))

	for {
		child, err := mod.Accept(listener, 0)
		if err != nil {
			continue
		}
		go echoTCPConnection(mod, child)
	}
}

func echoTCPConnection(mod *netsock.Module, h netsock.Handle) {
	defer mod.Free(h)
	stream, err := mod.Stream(h)
	if err != nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n == 0 || err != nil && err != io.EOF {
			return
		}
		if _, err := stream.Write(buf[:n]); err != nil {
			return
		}
		if err := stream.Flush(); err != nil {
			return
		}
	}
}

func runUDPEcho(mod *netsock.Module, addr netsock.Address) error {
	h, err := mod.NewUDPSocket()
	if err != nil {
		return err
	}
	if err := mod.Bind(h, addr); err != nil {
		return err
	}

	local, _, _ := mod.LocalAddress(h)
	fmt.Fprintf(os.Stdout, "netecho: udp echo listening on %s\n", local.ToString(true))

	for {
		datagram, peer, err := mod.RecvFrom(h, 0)
		if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if _, err := mod.SendTo(h, datagram, peer); err != nil {
			log.Printf("netecho: sendto %s failed: %v", peer.ToString(true), err)
		}
	}
}

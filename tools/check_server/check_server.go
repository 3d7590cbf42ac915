package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/darkprince558/flip/internal/transport"
	"github.com/darkprince558/flip/pkg/protocol"
)

// check_server performs an empty handshake, Init(0) then Agree, against a
// flip server and reports the round trip.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: check_server <host:port> [protocol]")
		fmt.Println("Example: check_server 192.168.1.10:9999 quic")
		os.Exit(1)
	}

	serverAddr := os.Args[1]
	proto := "tcp"
	if len(os.Args) > 2 {
		proto = os.Args[2]
	}
	kind, err := transport.ParseKind(proto)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	dialer, err := transport.NewDialer(kind)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fmt.Printf("Dialing %s over %s...\n", serverAddr, kind)
	start := time.Now()
	conn, err := dialer.Dial(ctx, serverAddr)
	if err != nil {
		fmt.Printf("Error connecting: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	connected := time.Since(start)

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	start = time.Now()
	if err := protocol.WriteInit(conn, 0); err != nil {
		fmt.Printf("Error sending Init: %v\n", err)
		os.Exit(1)
	}
	if _, err := protocol.ReadPacket(conn, protocol.Expect{Type: protocol.TypeAgree, Length: protocol.Length(0)}); err != nil {
		fmt.Printf("Bad reply to Init: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SUCCESS: connected in %v, handshake round trip %v\n", connected.Round(time.Microsecond), time.Since(start).Round(time.Microsecond))
}

package ring

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// payload is the message each rank passes to its right neighbor.
// CBOR-framed so the stream is self-delimiting over TCP.
type payload struct {
	Session string  `cbor:"session"`
	Rank    int     `cbor:"rank"`
	Data    []int32 `cbor:"data"`
}

// barrierMsg doubles as arrival report (rank -> coordinator) and
// release (coordinator -> rank).
type barrierMsg struct {
	Session string `cbor:"session"`
	Rank    int    `cbor:"rank"`
	Release bool   `cbor:"release,omitempty"`
}

func sendMsg(conn net.Conn, deadline time.Time, v any) error {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return cbor.NewEncoder(conn).Encode(v)
}

func recvMsg(conn net.Conn, deadline time.Time, v any) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	return cbor.NewDecoder(conn).Decode(v)
}

// dialRetry dials addr, retrying only while the peer's listener may
// still be coming up. The exchange itself performs no retries; this
// covers process startup skew between ranks.
func dialRetry(addr string, deadline time.Time) (net.Conn, error) {
	lastErr := errors.New("deadline already expired")
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Until(deadline))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("dial %s: %w", addr, lastErr)
}

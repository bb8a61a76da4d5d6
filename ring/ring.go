// Package ring implements the multi-process ring-exchange check: N
// ranks, each sending one payload to its right neighbor and receiving
// one from its left, then meeting on a barrier. Every rank sends
// exactly once and receives exactly once from distinct peers, so the
// pattern cannot deadlock and no retry logic is needed beyond
// tolerating slow rank startup.
package ring

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const (
	// DefaultPayloadLen matches the classic 8-word exchange buffer.
	DefaultPayloadLen = 8
	// DefaultTimeout bounds the whole exchange including rank
	// startup skew.
	DefaultTimeout = 30 * time.Second
)

// Addr returns the loopback address rank listens on. The barrier
// coordinator (rank 0) additionally listens on Addr(base, size).
func Addr(basePort, rank int) string {
	return fmt.Sprintf("127.0.0.1:%d", basePort+rank)
}

// Participant is one rank of the exchange.
type Participant struct {
	Rank    int
	Size    int
	Session string
	// PayloadLen defaults to DefaultPayloadLen.
	PayloadLen int
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// Listener accepts the left neighbor's payload. When nil, one is
	// opened on Addr(BasePort, Rank).
	Listener net.Listener
	// NextAddr is the right neighbor's address; defaults to
	// Addr(BasePort, (Rank+1) mod Size).
	NextAddr string
	// BarrierAddr is the coordinator's address; defaults to
	// Addr(BasePort, Size). Rank 0 listens there via
	// BarrierListener when set, or opens it itself.
	BarrierAddr     string
	BarrierListener net.Listener

	BasePort int
}

// Result is what the exchange delivered to this rank.
type Result struct {
	From     int
	Received []int32
}

// Run performs the two phases: the non-blocking send/receive pair,
// payload verification, then the barrier. It returns once every rank
// has arrived at the barrier and rank 0 has released it.
func (p *Participant) Run(ctx context.Context) (*Result, error) {
	if p.Size < 2 {
		return nil, fmt.Errorf("ring needs at least 2 ranks, got %d", p.Size)
	}
	if p.Rank < 0 || p.Rank >= p.Size {
		return nil, fmt.Errorf("rank %d out of range 0..%d", p.Rank, p.Size-1)
	}
	if p.PayloadLen <= 0 {
		p.PayloadLen = DefaultPayloadLen
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.NextAddr == "" {
		p.NextAddr = Addr(p.BasePort, (p.Rank+1)%p.Size)
	}
	if p.BarrierAddr == "" {
		p.BarrierAddr = Addr(p.BasePort, p.Size)
	}

	deadline := time.Now().Add(p.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	listener := p.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", Addr(p.BasePort, p.Rank))
		if err != nil {
			return nil, fmt.Errorf("rank %d listen: %w", p.Rank, err)
		}
	}
	defer listener.Close()

	var barrier net.Listener
	if p.Rank == 0 {
		barrier = p.BarrierListener
		if barrier == nil {
			var err error
			barrier, err = net.Listen("tcp", p.BarrierAddr)
			if err != nil {
				return nil, fmt.Errorf("rank 0 barrier listen: %w", err)
			}
		}
		defer barrier.Close()
	}

	src := (p.Rank - 1 + p.Size) % p.Size
	slog.Debug("ring exchange starting",
		"rank", p.Rank, "size", p.Size, "src", src, "dst", (p.Rank+1)%p.Size)

	// Post both operations, then wait for the pair, as with a
	// nonblocking Irecv/Isend followed by Waitall.
	recvCh := make(chan payload, 1)
	errCh := make(chan error, 2)

	go func() {
		var in payload
		conn, err := accept(listener, deadline)
		if err != nil {
			errCh <- fmt.Errorf("rank %d recv: %w", p.Rank, err)
			return
		}
		defer conn.Close()
		if err := recvMsg(conn, deadline, &in); err != nil {
			errCh <- fmt.Errorf("rank %d recv: %w", p.Rank, err)
			return
		}
		recvCh <- in
		errCh <- nil
	}()

	go func() {
		out := payload{Session: p.Session, Rank: p.Rank, Data: rankData(p.Rank, p.PayloadLen)}
		conn, err := dialRetry(p.NextAddr, deadline)
		if err != nil {
			errCh <- fmt.Errorf("rank %d send: %w", p.Rank, err)
			return
		}
		defer conn.Close()
		errCh <- sendMsg(conn, deadline, out)
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	in := <-recvCh

	if err := p.verify(in, src); err != nil {
		return nil, err
	}

	if err := p.runBarrier(barrier, deadline); err != nil {
		return nil, err
	}

	return &Result{From: in.Rank, Received: in.Data}, nil
}

// verify checks the received buffer element-wise against the left
// neighbor's rank.
func (p *Participant) verify(in payload, src int) error {
	if p.Session != "" && in.Session != p.Session {
		return fmt.Errorf("rank %d: payload from session %q, want %q", p.Rank, in.Session, p.Session)
	}
	if in.Rank != src {
		return fmt.Errorf("rank %d: payload from rank %d, want %d", p.Rank, in.Rank, src)
	}
	if len(in.Data) != p.PayloadLen {
		return fmt.Errorf("rank %d: payload length %d, want %d", p.Rank, len(in.Data), p.PayloadLen)
	}
	for i, v := range in.Data {
		if v != int32(src) {
			return fmt.Errorf("rank %d: payload[%d] = %d, want %d", p.Rank, i, v, src)
		}
	}
	return nil
}

// runBarrier synchronizes all ranks before exit. Rank 0 collects one
// arrival per peer, then releases them all.
func (p *Participant) runBarrier(barrier net.Listener, deadline time.Time) error {
	if p.Rank == 0 {
		conns := make([]net.Conn, 0, p.Size-1)
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()

		arrived := map[int]bool{}
		for len(arrived) < p.Size-1 {
			conn, err := accept(barrier, deadline)
			if err != nil {
				return fmt.Errorf("barrier accept: %w", err)
			}
			conns = append(conns, conn)

			var msg barrierMsg
			if err := recvMsg(conn, deadline, &msg); err != nil {
				return fmt.Errorf("barrier recv: %w", err)
			}
			if p.Session != "" && msg.Session != p.Session {
				return fmt.Errorf("barrier: arrival from session %q, want %q", msg.Session, p.Session)
			}
			arrived[msg.Rank] = true
		}

		release := barrierMsg{Session: p.Session, Rank: 0, Release: true}
		for _, conn := range conns {
			if err := sendMsg(conn, deadline, release); err != nil {
				return fmt.Errorf("barrier release: %w", err)
			}
		}
		return nil
	}

	conn, err := dialRetry(p.BarrierAddr, deadline)
	if err != nil {
		return fmt.Errorf("rank %d barrier: %w", p.Rank, err)
	}
	defer conn.Close()

	if err := sendMsg(conn, deadline, barrierMsg{Session: p.Session, Rank: p.Rank}); err != nil {
		return fmt.Errorf("rank %d barrier: %w", p.Rank, err)
	}
	var release barrierMsg
	if err := recvMsg(conn, deadline, &release); err != nil {
		return fmt.Errorf("rank %d barrier: %w", p.Rank, err)
	}
	if !release.Release {
		return fmt.Errorf("rank %d barrier: unexpected message %+v", p.Rank, release)
	}
	return nil
}

func rankData(rank, n int) []int32 {
	data := make([]int32, n)
	for i := range data {
		data[i] = int32(rank)
	}
	return data
}

func accept(l net.Listener, deadline time.Time) (net.Conn, error) {
	if tl, ok := l.(*net.TCPListener); ok {
		if err := tl.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return l.Accept()
}

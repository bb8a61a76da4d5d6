package ring

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// newRing wires n participants over loopback listeners with
// OS-assigned ports, so tests never collide on fixed port ranges.
func newRing(t *testing.T, n int) []*Participant {
	t.Helper()

	listeners := make([]net.Listener, n)
	addrs := make([]string, n)
	for i := range listeners {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		listeners[i] = l
		addrs[i] = l.Addr().String()
	}

	barrier, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { barrier.Close() })

	participants := make([]*Participant, n)
	for i := range participants {
		participants[i] = &Participant{
			Rank:        i,
			Size:        n,
			Session:     "test-session",
			Timeout:     10 * time.Second,
			Listener:    listeners[i],
			NextAddr:    addrs[(i+1)%n],
			BarrierAddr: barrier.Addr().String(),
		}
	}
	participants[0].BarrierListener = barrier
	return participants
}

func TestRingExchange(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("%d_ranks", n), func(t *testing.T) {
			participants := newRing(t, n)
			results := make([]*Result, n)

			var g errgroup.Group
			for i, p := range participants {
				i, p := i, p
				g.Go(func() error {
					result, err := p.Run(context.Background())
					results[i] = result
					return err
				})
			}
			require.NoError(t, g.Wait())

			for i, result := range results {
				left := (i - 1 + n) % n
				require.NotNil(t, result)
				assert.Equal(t, left, result.From, "rank %d", i)
				require.Len(t, result.Received, DefaultPayloadLen)
				for j, v := range result.Received {
					assert.Equal(t, int32(left), v, "rank %d element %d", i, j)
				}
			}
		})
	}
}

func TestRingRejectsBadGeometry(t *testing.T) {
	_, err := (&Participant{Rank: 0, Size: 1}).Run(context.Background())
	assert.Error(t, err)

	_, err = (&Participant{Rank: 5, Size: 2}).Run(context.Background())
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	p := &Participant{Rank: 1, Size: 4, Session: "s", PayloadLen: 4}

	good := payload{Session: "s", Rank: 0, Data: []int32{0, 0, 0, 0}}
	assert.NoError(t, p.verify(good, 0))

	wrongSession := good
	wrongSession.Session = "other"
	assert.Error(t, p.verify(wrongSession, 0))

	wrongRank := good
	wrongRank.Rank = 2
	assert.Error(t, p.verify(wrongRank, 0))

	short := good
	short.Data = []int32{0}
	assert.Error(t, p.verify(short, 0))

	corrupt := good
	corrupt.Data = []int32{0, 9, 0, 0}
	assert.Error(t, p.verify(corrupt, 0))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:43800", Addr(43800, 0))
	assert.Equal(t, "127.0.0.1:43803", Addr(43800, 3))
}

func TestPrefixWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := &lineWriter{out: &buf}

	w := sink.prefixed("[rank 0] ")
	fmt.Fprint(w, "hello ")
	fmt.Fprint(w, "world\npartial")
	fmt.Fprint(w, " line\n")

	assert.Equal(t, "[rank 0] hello world\n[rank 0] partial line\n", buf.String())
}

func TestLaunchRejectsTooFewRanks(t *testing.T) {
	var buf bytes.Buffer
	err := Launch(context.Background(), LaunchConfig{Ranks: 1}, &buf)
	assert.Error(t, err)
}

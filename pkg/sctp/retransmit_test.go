package sctp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetransmitQueueAcknowledgeRemovesCovered(t *testing.T) {
	q := newRetransmitQueue(0)
	now := time.Unix(0, 0)

	c := &ChunkData{TSN: 1, UserData: []byte("abc")}
	q.enqueue(c, nil, now)
	assert.Equal(t, 1, q.Count())
	assert.Equal(t, uint32(3), q.BytesInFlight())

	q.acknowledge(1, nil, now.Add(50*time.Millisecond))
	assert.Equal(t, 0, q.Count())
	assert.Equal(t, uint32(0), q.BytesInFlight())
}

func TestRetransmitQueueGrowsCwndOnAck(t *testing.T) {
	q := newRetransmitQueue(0)
	now := time.Unix(0, 0)
	before := q.cwnd

	c := &ChunkData{TSN: 1, UserData: make([]byte, 100)}
	q.enqueue(c, nil, now)
	q.acknowledge(1, nil, now.Add(10*time.Millisecond))

	assert.Greater(t, q.cwnd, before)
}

func TestRetransmitQueuePendingRetransmissionsRespectsRTO(t *testing.T) {
	q := newRetransmitQueue(5)
	now := time.Unix(0, 0)
	c := &ChunkData{TSN: 1, UserData: []byte("x")}
	q.enqueue(c, nil, now)

	due, err := q.pendingRetransmissions(now.Add(100 * time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = q.pendingRetransmissions(now.Add(q.rto + time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, uint32(1), due[0].TSN)
}

func TestRetransmitQueueMaxRetransmitsExceeded(t *testing.T) {
	q := newRetransmitQueue(1)
	now := time.Unix(0, 0)
	c := &ChunkData{TSN: 1, UserData: []byte("x")}
	q.enqueue(c, nil, now)

	elapsed := now
	for i := 0; i < 1; i++ {
		elapsed = elapsed.Add(q.rto + time.Second)
		due, err := q.pendingRetransmissions(elapsed)
		require.NoError(t, err)
		require.Len(t, due, 1)
	}

	elapsed = elapsed.Add(q.rto + time.Second)
	_, err := q.pendingRetransmissions(elapsed)
	assert.ErrorIs(t, err, ErrMaxRetransmitsExceeded)
}

func TestRetransmitQueueFastRetransmitViaGap(t *testing.T) {
	q := newRetransmitQueue(0)
	now := time.Unix(0, 0)
	q.enqueue(&ChunkData{TSN: 1, UserData: []byte("a")}, nil, now)
	q.enqueue(&ChunkData{TSN: 2, UserData: []byte("b")}, nil, now)

	// Peer reports TSN 2 as a gap (received) while cumulative stays at 0
	// (TSN 1 missing) — TSN 2 should be considered covered, not pending.
	q.acknowledge(0, []GapBlock{{Start: 2, End: 2}}, now)
	assert.Equal(t, 1, q.Count())
	_, stillPending := q.entries[2]
	assert.False(t, stillPending)
}

func TestClampRTO(t *testing.T) {
	assert.Equal(t, minRTO, clampRTO(10*time.Millisecond))
	assert.Equal(t, maxRTO, clampRTO(time.Hour))
	assert.Equal(t, 2*time.Second, clampRTO(2*time.Second))
}

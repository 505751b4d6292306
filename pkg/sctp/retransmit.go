package sctp

import (
	"sort"
	"time"
)

const (
	mtu               = 1200
	minRTO            = 1 * time.Second
	maxRTO            = 60 * time.Second
	defaultMaxRTX     = 10
	defaultInitialCwnd = 4 * mtu
)

// pendingEntry is one outstanding DATA chunk, spec.md §3 "RetransmissionQueue".
type pendingEntry struct {
	chunk           *ChunkData
	raw             []byte // marshaled bytes of the first transmission; retransmissions are rebuilt from chunk
	firstSent       time.Time
	lastSent        time.Time
	retransmitCount int
	fastRetransmit  bool
}

// retransmitQueue is the SCTP sender-side retransmission/congestion
// engine, spec.md §4.4.
type retransmitQueue struct {
	maxRetransmit int

	entries       map[uint32]*pendingEntry
	bytesInFlight uint32
	highestSent   uint32
	hasSent       bool

	cwnd    uint32
	ssthresh uint32

	srtt  time.Duration
	rttvar time.Duration
	rto   time.Duration
	hasRTTSample bool
}

func newRetransmitQueue(maxRetransmit int) *retransmitQueue {
	if maxRetransmit <= 0 {
		maxRetransmit = defaultMaxRTX
	}
	return &retransmitQueue{
		maxRetransmit: maxRetransmit,
		entries:       make(map[uint32]*pendingEntry),
		cwnd:          defaultInitialCwnd,
		ssthresh:      65535,
		rto:           3 * time.Second,
	}
}

// enqueue records a newly sent DATA chunk.
func (q *retransmitQueue) enqueue(c *ChunkData, raw []byte, now time.Time) {
	q.entries[c.TSN] = &pendingEntry{
		chunk: c, raw: raw, firstSent: now, lastSent: now,
	}
	q.bytesInFlight += uint32(len(c.UserData))
	if !q.hasSent || serialGreater(c.TSN, q.highestSent) {
		q.highestSent = c.TSN
		q.hasSent = true
	}
}

// acknowledge removes every entry with TSN <= cumulativeTSN (serial-number
// order), folds an RTT sample from each such entry whose
// retransmitCount was zero, and advances cwnd per RFC 4960 §7.2 (slow
// start while bytesInFlight < ssthresh, else congestion avoidance), both
// capped at 65535. Gap blocks mark covered-but-not-yet-cumulative TSNs for
// fast retransmit but are not themselves removed here.
func (q *retransmitQueue) acknowledge(cumulativeTSN uint32, gaps []GapBlock, now time.Time) {
	var ackedBytes uint32

	for tsn, e := range q.entries {
		if serialGreaterOrEqual(cumulativeTSN, tsn) {
			ackedBytes += uint32(len(e.chunk.UserData))
			if e.retransmitCount == 0 {
				q.updateRTT(now.Sub(e.firstSent))
			}
			delete(q.entries, tsn)
		}
	}

	if ackedBytes > 0 {
		if q.bytesInFlight >= ackedBytes {
			q.bytesInFlight -= ackedBytes
		} else {
			q.bytesInFlight = 0
		}
		q.growCwnd(ackedBytes)
	}

	q.markFastRetransmit(cumulativeTSN, gaps)
}

func (q *retransmitQueue) growCwnd(ackedBytes uint32) {
	if q.bytesInFlight < q.ssthresh {
		// Slow start.
		q.cwnd += ackedBytes
	} else {
		// Congestion avoidance: increase by at most one MTU per RTT,
		// approximated per SACK as mtu*ackedBytes/cwnd.
		inc := uint32(mtu) * ackedBytes / q.cwnd
		if inc == 0 {
			inc = 1
		}
		q.cwnd += inc
	}
	if q.cwnd > 65535 {
		q.cwnd = 65535
	}
	if q.ssthresh > 65535 {
		q.ssthresh = 65535
	}
}

// markFastRetransmit flags entries covered by a gap report (present above
// cumulative per the peer) as eligible for immediate retransmission,
// without removing them — they are only removed once the peer's
// cumulative TSN actually reaches them.
func (q *retransmitQueue) markFastRetransmit(cumulativeTSN uint32, gaps []GapBlock) {
	for _, g := range gaps {
		for off := uint32(g.Start); off <= uint32(g.End); off++ {
			tsn := cumulativeTSN + off
			if e, ok := q.entries[tsn]; ok {
				e.fastRetransmit = false // covered by gap: peer has it, not pending
				delete(q.entries, tsn)
			}
		}
	}
}

// pendingRetransmissions returns chunks whose RTO has elapsed or whose
// fast-retransmit flag is set, bumping their retransmit counters and
// applying RFC 4960 §6.3.3's backoff (RTO doubles, capped at 60s; ssthresh
// halves; cwnd resets to one MTU). Returns ErrMaxRetransmitsExceeded if any
// chunk has now exceeded maxRetransmit.
func (q *retransmitQueue) pendingRetransmissions(now time.Time) ([]*ChunkData, error) {
	var due []uint32
	for tsn, e := range q.entries {
		if e.fastRetransmit || now.Sub(e.lastSent) >= q.rto {
			due = append(due, tsn)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return serialGreater(due[j], due[i]) })

	var chunks []*ChunkData
	for _, tsn := range due {
		e := q.entries[tsn]
		e.retransmitCount++
		e.lastSent = now
		e.fastRetransmit = false
		if e.retransmitCount > q.maxRetransmit {
			return nil, ErrMaxRetransmitsExceeded
		}
		chunks = append(chunks, e.chunk)
	}

	q.rto *= 2
	if q.rto > maxRTO {
		q.rto = maxRTO
	}
	q.ssthresh /= 2
	if q.ssthresh < uint32(mtu) {
		q.ssthresh = uint32(mtu)
	}
	q.cwnd = uint32(mtu)

	return chunks, nil
}

// updateRTT applies RFC 4960 §6.3.1's RTT estimator.
func (q *retransmitQueue) updateRTT(r time.Duration) {
	if !q.hasRTTSample {
		q.srtt = r
		q.rttvar = r / 2
		q.hasRTTSample = true
	} else {
		diff := q.srtt - r
		if diff < 0 {
			diff = -diff
		}
		q.rttvar = q.rttvar*3/4 + diff/4
		q.srtt = q.srtt*7/8 + r/8
	}
	rto := q.srtt + 4*q.rttvar
	q.rto = clampRTO(rto)
}

func clampRTO(d time.Duration) time.Duration {
	if d < minRTO {
		return minRTO
	}
	if d > maxRTO {
		return maxRTO
	}
	return d
}

// BytesInFlight reports bytesInFlight for diagnostics and tests.
func (q *retransmitQueue) BytesInFlight() uint32 { return q.bytesInFlight }

// Count reports the number of entries still pending acknowledgment.
func (q *retransmitQueue) Count() int { return len(q.entries) }

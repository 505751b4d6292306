package sctp

import "sort"

// DefaultMaxFragmentGroups bounds the number of in-flight fragment groups
// kept concurrently, spec.md §4.4 ("default 1000, oldest-first eviction").
const DefaultMaxFragmentGroups = 1000

// defaultMaxFragmentTSNDistance bounds how far a fragment group's lowest
// buffered TSN may lag the cumulative TSN ack point before the group is
// considered permanently incomplete (a lost Begin or End fragment) and
// evicted, spec.md §4.4 ("stale groups are evicted by TSN distance").
const defaultMaxFragmentTSNDistance = 1 << 16

// AssembledMessage is one complete application message handed to the
// stream dispatcher, spec.md §4.4.
type AssembledMessage struct {
	StreamID  uint16
	StreamSeq uint16
	PPID      PPID
	Unordered bool
	Data      []byte
}

type fragKey struct {
	streamID  uint16
	streamSeq uint16
	unordered bool
}

// reassembler implements the fragment assembler and the per-stream ordered
// delivery buffer from spec.md §4.4.
type reassembler struct {
	maxGroups int

	buckets    map[fragKey]map[uint32]*ChunkData
	groupOrder []fragKey // FIFO for oldest-first eviction

	orderedBuffer map[uint16]map[uint16]AssembledMessage
	expectedSeq   map[uint16]uint16
}

func newReassembler(maxGroups int) *reassembler {
	if maxGroups <= 0 {
		maxGroups = DefaultMaxFragmentGroups
	}
	return &reassembler{
		maxGroups:     maxGroups,
		buckets:       make(map[fragKey]map[uint32]*ChunkData),
		orderedBuffer: make(map[uint16]map[uint16]AssembledMessage),
		expectedSeq:   make(map[uint16]uint16),
	}
}

// push feeds one DATA chunk's payload into the assembler and returns zero
// or more messages now ready for delivery, in delivery order.
func (r *reassembler) push(c *ChunkData) []AssembledMessage {
	if c.Begin && c.End {
		msg := AssembledMessage{
			StreamID: c.StreamID, StreamSeq: c.StreamSeq,
			PPID: c.PPID, Unordered: c.Unordered, Data: c.UserData,
		}
		return r.deliverOrBuffer(msg)
	}

	key := fragKey{c.StreamID, c.StreamSeq, c.Unordered}
	bucket, ok := r.buckets[key]
	if !ok {
		bucket = make(map[uint32]*ChunkData)
		r.buckets[key] = bucket
		r.groupOrder = append(r.groupOrder, key)
		r.evictIfOverCapacity()
	}
	bucket[c.TSN] = c

	var ready []AssembledMessage
	for {
		msg, complete := extractCompleteRun(bucket)
		if !complete {
			break
		}
		ready = append(ready, r.deliverOrBuffer(msg)...)
	}
	if len(bucket) == 0 {
		delete(r.buckets, key)
	}
	return ready
}

// extractCompleteRun scans the bucket's TSNs in serial-number order for
// the first maximal contiguous run that starts at a Begin fragment and
// ends at an End fragment, with every TSN in between present. If found,
// it removes those fragments from the bucket and returns the assembled
// message.
func extractCompleteRun(bucket map[uint32]*ChunkData) (AssembledMessage, bool) {
	if len(bucket) == 0 {
		return AssembledMessage{}, false
	}
	tsns := make([]uint32, 0, len(bucket))
	for tsn := range bucket {
		tsns = append(tsns, tsn)
	}
	sort.Slice(tsns, func(i, j int) bool { return serialGreater(tsns[j], tsns[i]) })

	for i, tsn := range tsns {
		if !bucket[tsn].Begin {
			continue
		}
		// Walk forward while contiguous, looking for End.
		run := []uint32{tsn}
		ok := true
		for j := i + 1; j < len(tsns); j++ {
			if tsns[j] != run[len(run)-1]+1 {
				ok = false
				break
			}
			run = append(run, tsns[j])
			if bucket[tsns[j]].End {
				break
			}
		}
		if !ok || !bucket[run[len(run)-1]].End {
			continue
		}

		var data []byte
		var ppid PPID
		var streamID, streamSeq uint16
		var unordered bool
		for k, rtsn := range run {
			c := bucket[rtsn]
			if k == 0 {
				ppid, streamID, streamSeq, unordered = c.PPID, c.StreamID, c.StreamSeq, c.Unordered
			}
			data = append(data, c.UserData...)
			delete(bucket, rtsn)
		}
		return AssembledMessage{
			StreamID: streamID, StreamSeq: streamSeq,
			PPID: ppid, Unordered: unordered, Data: data,
		}, true
	}
	return AssembledMessage{}, false
}

// deliverOrBuffer delivers unordered messages immediately; ordered
// messages are buffered per stream and drained greedily as
// expectedSequence advances (spec.md §4.4).
func (r *reassembler) deliverOrBuffer(msg AssembledMessage) []AssembledMessage {
	if msg.Unordered {
		return []AssembledMessage{msg}
	}

	buf, ok := r.orderedBuffer[msg.StreamID]
	if !ok {
		buf = make(map[uint16]AssembledMessage)
		r.orderedBuffer[msg.StreamID] = buf
	}
	buf[msg.StreamSeq] = msg

	var ready []AssembledMessage
	expected := r.expectedSeq[msg.StreamID]
	for {
		next, ok := buf[expected]
		if !ok {
			break
		}
		ready = append(ready, next)
		delete(buf, expected)
		expected++
	}
	r.expectedSeq[msg.StreamID] = expected
	return ready
}

func (r *reassembler) evictIfOverCapacity() {
	for len(r.groupOrder) > r.maxGroups {
		oldest := r.groupOrder[0]
		r.groupOrder = r.groupOrder[1:]
		delete(r.buckets, oldest)
	}
}

// evictStale drops incomplete groups whose lowest buffered TSN lags the
// current cumulative TSN by more than maxDistance, preventing a
// never-completing group (a permanently lost fragment) from pinning
// memory forever.
func (r *reassembler) evictStale(cumulativeTSN uint32, maxDistance uint32) {
	for key, bucket := range r.buckets {
		min := minTSN(bucket)
		if d := serialDiff(cumulativeTSN, min); d > 0 && uint32(d) > maxDistance {
			delete(r.buckets, key)
		}
	}
}

func minTSN(bucket map[uint32]*ChunkData) uint32 {
	var min uint32
	first := true
	for tsn := range bucket {
		if first || serialGreater(min, tsn) {
			min = tsn
			first = false
		}
	}
	return min
}

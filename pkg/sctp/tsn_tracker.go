package sctp

import "sort"

const maxDuplicates = 16

// tsnTracker maintains the cumulative TSN and the set of TSNs received
// above it, spec.md §3/§4.4 "TSNTracker".
type tsnTracker struct {
	cumulativeTSN uint32
	aboveSet      map[uint32]struct{}
	duplicates    []uint32
}

// newTSNTracker initializes cumulativeTSN to peerInitialTSN-1 via modular
// subtraction, spec.md §4.4.
func newTSNTracker(peerInitialTSN uint32) *tsnTracker {
	return &tsnTracker{
		cumulativeTSN: peerInitialTSN - 1,
		aboveSet:      make(map[uint32]struct{}),
	}
}

// receive records tsn, returning true if it was newly accepted (not a
// duplicate). Comparisons use RFC 1982 serial-number arithmetic (spec.md
// §4.4): a TSN within (0, 65535] of cumulative and not already seen is
// accepted; if it equals cumulative+1, cumulative advances and drains any
// contiguous TSNs already buffered above it.
func (t *tsnTracker) receive(tsn uint32) bool {
	diff := serialDiff(tsn, t.cumulativeTSN)
	if diff <= 0 || diff > 65535 {
		t.recordDuplicate(tsn)
		return false
	}
	if _, dup := t.aboveSet[tsn]; dup {
		t.recordDuplicate(tsn)
		return false
	}

	if tsn == t.cumulativeTSN+1 {
		t.cumulativeTSN = tsn
		for {
			next := t.cumulativeTSN + 1
			if _, ok := t.aboveSet[next]; !ok {
				break
			}
			delete(t.aboveSet, next)
			t.cumulativeTSN = next
		}
		return true
	}

	t.aboveSet[tsn] = struct{}{}
	return true
}

func (t *tsnTracker) recordDuplicate(tsn uint32) {
	if len(t.duplicates) >= maxDuplicates {
		return
	}
	t.duplicates = append(t.duplicates, tsn)
}

// cumulative returns the current cumulative TSN.
func (t *tsnTracker) cumulative() uint32 { return t.cumulativeTSN }

// takeDuplicates returns and clears the buffered duplicate list, for
// inclusion in the next SACK.
func (t *tsnTracker) takeDuplicates() []uint32 {
	d := t.duplicates
	t.duplicates = nil
	return d
}

// gapBlocks scans the above-cumulative set in serial-number order and
// coalesces consecutive TSNs into (start, end) offset pairs from
// cumulativeTSN, each bounded to uint16 max (spec.md §4.4).
func (t *tsnTracker) gapBlocks() []GapBlock {
	if len(t.aboveSet) == 0 {
		return nil
	}
	tsns := make([]uint32, 0, len(t.aboveSet))
	for tsn := range t.aboveSet {
		tsns = append(tsns, tsn)
	}
	sort.Slice(tsns, func(i, j int) bool {
		return serialGreater(tsns[j], tsns[i])
	})

	var blocks []GapBlock
	var start, end uint32
	open := false
	for _, tsn := range tsns {
		off := uint32(serialDiff(tsn, t.cumulativeTSN))
		if off > 0xFFFF {
			continue
		}
		if !open {
			start, end = off, off
			open = true
			continue
		}
		if off == end+1 {
			end = off
			continue
		}
		blocks = append(blocks, GapBlock{Start: uint16(start), End: uint16(end)})
		start, end = off, off
	}
	if open {
		blocks = append(blocks, GapBlock{Start: uint16(start), End: uint16(end)})
	}
	return blocks
}

package sctp

// serialGreater reports whether a is "greater than" b under RFC 1982
// serial-number arithmetic: cast the difference to signed 32-bit and check
// its sign. This is required for TSN and stream-sequence comparisons
// because both wrap at 2^32/2^16 (spec.md §4.4).
func serialGreater(a, b uint32) bool {
	return int32(a-b) > 0
}

// serialGreaterOrEqual reports a >= b under serial-number arithmetic.
func serialGreaterOrEqual(a, b uint32) bool {
	return a == b || serialGreater(a, b)
}

// serialDiff returns a-b as a signed 32-bit distance.
func serialDiff(a, b uint32) int32 {
	return int32(a - b)
}

// seqGreater is the 16-bit analog of serialGreater, used for stream
// sequence numbers.
func seqGreater(a, b uint16) bool {
	return int16(a-b) > 0
}

func seqGreaterOrEqual(a, b uint16) bool {
	return a == b || seqGreater(a, b)
}

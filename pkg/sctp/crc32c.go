package sctp

import "hash/crc32"

// castagnoliTable backs the CRC-32C (Castagnoli, polynomial 0x82F63B78)
// checksum spec.md §4.3 requires for the SCTP common header. hash/crc32
// uses the CPU's CRC-32C instructions for this table where they exist and
// its slicing-by-8 tables otherwise.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

var fourZeroBytes = [4]byte{}

// packetChecksum computes CRC-32C over raw with the checksum field (bytes
// 8:12) treated as zero, without copying the packet.
func packetChecksum(raw []byte) uint32 {
	sum := crc32.Update(0, castagnoliTable, raw[0:8])
	sum = crc32.Update(sum, castagnoliTable, fourZeroBytes[:])
	sum = crc32.Update(sum, castagnoliTable, raw[12:])
	return sum
}

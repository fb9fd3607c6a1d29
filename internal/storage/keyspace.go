package storage

// Type prefixes are disjoint per entity kind so RemoveRange over
// [stage,prefix] to [stage,prefix+1) clears exactly one kind (spec.md §6).
const (
	PrefixAccount      byte = 0x01
	PrefixTransaction  byte = 0x02
	PrefixNode         byte = 0x03
	PrefixConflictSet  byte = 0x04
	PrefixConsensus    byte = 0x05
	PrefixMessage      byte = 0x06
)

// Key builds a [stage_byte, type_prefix_byte, payload...] key.
func Key(stage byte, prefix byte, payload []byte) []byte {
	k := make([]byte, 0, 2+len(payload))
	k = append(k, stage, prefix)
	k = append(k, payload...)
	return k
}

// PrefixRange returns the half-open [from, to) range that contains exactly
// the keys under (stage, prefix).
func PrefixRange(stage byte, prefix byte) (from, to []byte) {
	from = []byte{stage, prefix}
	to = []byte{stage, prefix + 1}
	return from, to
}

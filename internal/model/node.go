package model

// Node represents a peer. Its identity is CRH(address) — computed by
// callers via internal/hashing.CRH(node.Address.Bytes()) and cached as ID
// rather than being recomputed as a method here, keeping this package's
// dependency surface limited to plain-byte hashing helpers.
type Node struct {
	ID       Digest    `cbor:"1,keyasint"`
	Address  Address   `cbor:"2,keyasint"`
	Stage    Stage     `cbor:"3,keyasint"`
	LastSeen Timestamp `cbor:"4,keyasint"`
}

func NewNode(id Digest, address Address, stage Stage, lastSeen Timestamp) Node {
	return Node{ID: id, Address: address, Stage: stage, LastSeen: lastSeen}
}

// Refresh replaces LastSeen with other.LastSeen only if strictly newer,
// matching the "monotonically refreshed" invariant in spec.md §3.
func (n *Node) Refresh(other Node) bool {
	if other.LastSeen.Time.After(n.LastSeen.Time) {
		n.LastSeen = other.LastSeen
		return true
	}
	return false
}

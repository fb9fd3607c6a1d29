package model

// Account tracks a participant's on-chain balance bookkeeping. Balance
// computation beyond input/output summation is out of scope (spec.md §1
// Non-goals); Value here is the running total seeded by the genesis flow
// and adjusted as transactions referencing this address are accepted.
type Account struct {
	Address Address `cbor:"1,keyasint"`
	Stage   Stage   `cbor:"2,keyasint"`
	Counter uint64  `cbor:"3,keyasint"`
	Value   uint64  `cbor:"4,keyasint"`
}

func NewAccount(address Address, stage Stage) Account {
	return Account{Address: address, Stage: stage}
}

// IsEve reports whether this account is the genesis account. The node's
// deterministic predicate is address-equality to the zero address, the
// sentinel reserved at genesis time and never reachable from a real
// ed25519 keypair (see DESIGN.md, Open Question: eve account predicate).
func (a Account) IsEve() bool {
	return a.Address.IsZero()
}

func NewEveAccount(stage Stage) Account {
	return Account{Address: ZeroAddress, Stage: stage}
}

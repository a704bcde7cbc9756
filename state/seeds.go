package state

import "xdao.co/introledger/address"

// CounterSeed is the constant second seed of a ReplyCounter address.
const CounterSeed = "reply"

// IntroSeeds are the derivation seeds of the intro record owned by identity.
func IntroSeeds(identity address.Address) [][]byte {
	return [][]byte{identity.Bytes()}
}

// CounterSeeds are the derivation seeds of the counter paired with intro.
func CounterSeeds(intro address.Address) [][]byte {
	return [][]byte{intro.Bytes(), []byte(CounterSeed)}
}

// ReplySeeds are the derivation seeds of reply number ordinal under intro.
// The ordinal is encoded big-endian; its width caps replies at MaxReplies.
func ReplySeeds(intro address.Address, ordinal uint8) [][]byte {
	return [][]byte{intro.Bytes(), {ordinal}}
}

// IntroAddress derives the intro record address for identity.
func IntroAddress(program, identity address.Address) (address.Address, address.Proof, error) {
	return address.DeriveProof(IntroSeeds(identity), program)
}

// CounterAddress derives the reply counter address for intro.
func CounterAddress(program, intro address.Address) (address.Address, address.Proof, error) {
	return address.DeriveProof(CounterSeeds(intro), program)
}

// ReplyAddress derives the address of reply number ordinal under intro. Any
// reply can be located from its ordinal alone; there is no index.
func ReplyAddress(program, intro address.Address, ordinal uint8) (address.Address, address.Proof, error) {
	return address.DeriveProof(ReplySeeds(intro, ordinal), program)
}

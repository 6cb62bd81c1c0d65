// circuit.go - The withdraw circuit over BLS12-377.
//
// The in-circuit hasher must stay bit-compatible with the native Poseidon2
// used by the tree and the nullifier derivation; both come from the same
// gnark release.

package withdraw

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/poseidon2"

	"mixer/internal/mixer"
)

// Circuit proves knowledge of a (nullifier, secret) pair whose commitment sits
// under a published Merkle root, without revealing which leaf. Public inputs,
// in order: root, nullifier hash, recipient field.
type Circuit struct {
	Root          frontend.Variable `gnark:",public"`
	NullifierHash frontend.Variable `gnark:",public"`
	Recipient     frontend.Variable `gnark:",public"`

	// Private inputs
	Nullifier frontend.Variable
	Secret    frontend.Variable
	Siblings  [mixer.TreeDepth]frontend.Variable
	IsEven    [mixer.TreeDepth]frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	// Step 1: nullifierHash = H1(nullifier), single input slot.
	h, err := poseidon2.NewMerkleDamgardHasher(api)
	if err != nil {
		return err
	}
	h.Write(c.Nullifier)
	api.AssertIsEqual(c.NullifierHash, h.Sum())

	// Step 2: commitment = H2(nullifier, secret).
	h.Reset()
	h.Write(c.Nullifier, c.Secret)
	cur := h.Sum()

	// Step 3: fold the sibling path in parity order up to the root.
	// IsEven[l] = 1 means the tracked node is the left child at level l.
	for l := 0; l < mixer.TreeDepth; l++ {
		api.AssertIsBoolean(c.IsEven[l])
		left := api.Select(c.IsEven[l], cur, c.Siblings[l])
		right := api.Select(c.IsEven[l], c.Siblings[l], cur)
		h.Reset()
		h.Write(left, right)
		cur = h.Sum()
	}
	api.AssertIsEqual(c.Root, cur)

	// Step 4: bind the recipient so the proof cannot be replayed to another
	// address. The square adds a constraint over the public input.
	api.Mul(c.Recipient, c.Recipient)

	return nil
}

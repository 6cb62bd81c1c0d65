// poseidon.go - Field element type and Poseidon2 hashing for the mixer protocol.
//
// All protocol values (commitments, tree nodes, nullifier hashes) are elements
// of the BLS12-377 scalar field, canonically encoded as 32 bytes big-endian.
// Hashing uses the gnark-crypto Poseidon2 Merkle-Damgard construction, the
// native counterpart of the in-circuit hasher used by the withdraw circuit; any
// substitution must stay bit-for-bit compatible or proofs will fail to verify.

package mixer

import (
	"encoding/hex"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/poseidon2"
)

// FieldSize is the canonical encoded size of a field element in bytes.
const FieldSize = 32

// Field is a BLS12-377 scalar field element in canonical 32-byte big-endian
// encoding. The zero value is the field's zero element.
type Field [FieldSize]byte

// FieldFromElement converts a gnark-crypto field element to its canonical encoding.
func FieldFromElement(e *fr.Element) Field {
	return Field(e.Bytes())
}

// FieldFromBytes builds a Field from exactly 32 bytes, reducing into the field.
// Returns ErrInvalidLength for any other input size.
func FieldFromBytes(b []byte) (Field, error) {
	if len(b) != FieldSize {
		return Field{}, ErrInvalidLength
	}
	var e fr.Element
	e.SetBytes(b)
	return FieldFromElement(&e), nil
}

// FieldFromBig reduces a big integer into the field.
func FieldFromBig(v *big.Int) Field {
	var e fr.Element
	e.SetBigInt(v)
	return FieldFromElement(&e)
}

// FieldFromUint64 lifts a small integer into the field.
func FieldFromUint64(v uint64) Field {
	var e fr.Element
	e.SetUint64(v)
	return FieldFromElement(&e)
}

// RandomField draws a uniformly random field element from crypto/rand.
func RandomField() (Field, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return Field{}, err
	}
	return FieldFromElement(&e), nil
}

// Element decodes the canonical encoding back into a gnark-crypto element.
func (f Field) Element() fr.Element {
	var e fr.Element
	e.SetBytes(f[:])
	return e
}

// Big returns the field element as a big integer.
func (f Field) Big() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// Hex returns the human-facing hex form of the canonical encoding.
func (f Field) Hex() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero element.
func (f Field) IsZero() bool {
	return f == Field{}
}

// Hash2 computes Poseidon2(a, b). Order-sensitive: the tree always hashes the
// left child first.
func Hash2(a, b Field) Field {
	h := poseidon2.NewMerkleDamgardHasher()
	h.Write(a[:])
	h.Write(b[:])
	var out Field
	copy(out[:], h.Sum(nil))
	return out
}

// Hash1 computes Poseidon2 over a single input slot. Used for nullifier
// hashing; distinct from Hash2(a, 0) because only one element is absorbed.
func Hash1(a Field) Field {
	h := poseidon2.NewMerkleDamgardHasher()
	h.Write(a[:])
	var out Field
	copy(out[:], h.Sum(nil))
	return out
}

// instruction.go - Binary codec for the three protocol operations.
//
// Wire layout, bit-exact for interoperability with existing deployments:
//
//	tag 0 Initialize: denomination u64 little-endian (8 bytes)
//	tag 1 PushRoot:   root [32]byte
//	tag 2 Withdraw:   root [32] || nullifierHash [32] || recipientField [32]
//	                  || proofWithWitness (variable, no length prefix)
//
// Field values travel as their canonical 32-byte encoding copied verbatim.
// proofWithWitness is the opaque proof blob followed by the opaque public
// witness blob; the verifier side knows the proof's fixed serialization and
// splits the two itself.

package mixer

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Instruction tags.
const (
	TagInitialize byte = 0
	TagPushRoot   byte = 1
	TagWithdraw   byte = 2
)

// Instruction is one decoded protocol operation.
type Instruction interface {
	Tag() byte
}

// Initialize creates the mixer state singleton with a fixed denomination.
type Initialize struct {
	Denomination uint64
}

func (Initialize) Tag() byte { return TagInitialize }

// PushRoot publishes a new Merkle root into the history window.
type PushRoot struct {
	Root Field
}

func (PushRoot) Tag() byte { return TagPushRoot }

// Withdraw spends one deposit: cites a historical root, reveals the nullifier
// hash, binds the recipient, and carries the proof plus public witness.
type Withdraw struct {
	Root             Field
	NullifierHash    Field
	RecipientField   Field
	ProofWithWitness []byte
}

func (Withdraw) Tag() byte { return TagWithdraw }

// EncodeInitialize encodes an Initialize operation.
func EncodeInitialize(denomination uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = TagInitialize
	binary.LittleEndian.PutUint64(buf[1:], denomination)
	return buf
}

// EncodePushRoot encodes a PushRoot operation. The root must be exactly
// 32 bytes.
func EncodePushRoot(root []byte) ([]byte, error) {
	if len(root) != FieldSize {
		return nil, fmt.Errorf("root is %d bytes: %w", len(root), ErrInvalidLength)
	}
	buf := make([]byte, 1+FieldSize)
	buf[0] = TagPushRoot
	copy(buf[1:], root)
	return buf, nil
}

// EncodeWithdraw encodes a Withdraw operation. Each fixed field must be
// exactly 32 bytes; proofWithWitness is copied as-is.
func EncodeWithdraw(root, nullifierHash, recipientField, proofWithWitness []byte) ([]byte, error) {
	for _, f := range [][]byte{root, nullifierHash, recipientField} {
		if len(f) != FieldSize {
			return nil, fmt.Errorf("fixed field is %d bytes: %w", len(f), ErrInvalidLength)
		}
	}
	buf := make([]byte, 0, 1+3*FieldSize+len(proofWithWitness))
	buf = append(buf, TagWithdraw)
	buf = append(buf, root...)
	buf = append(buf, nullifierHash...)
	buf = append(buf, recipientField...)
	buf = append(buf, proofWithWitness...)
	return buf, nil
}

// DecodeInstruction parses instruction bytes into one of the three operations.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrInvalidInstruction)
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case TagInitialize:
		if len(rest) != 8 {
			return nil, fmt.Errorf("initialize payload is %d bytes: %w", len(rest), ErrInvalidInstruction)
		}
		return Initialize{Denomination: binary.LittleEndian.Uint64(rest)}, nil
	case TagPushRoot:
		if len(rest) != FieldSize {
			return nil, fmt.Errorf("push-root payload is %d bytes: %w", len(rest), ErrInvalidInstruction)
		}
		var ins PushRoot
		copy(ins.Root[:], rest)
		return ins, nil
	case TagWithdraw:
		if len(rest) < 3*FieldSize {
			return nil, fmt.Errorf("withdraw payload is %d bytes: %w", len(rest), ErrInvalidInstruction)
		}
		var ins Withdraw
		copy(ins.Root[:], rest[0:FieldSize])
		copy(ins.NullifierHash[:], rest[FieldSize:2*FieldSize])
		copy(ins.RecipientField[:], rest[2*FieldSize:3*FieldSize])
		ins.ProofWithWitness = append([]byte(nil), rest[3*FieldSize:]...)
		return ins, nil
	default:
		return nil, fmt.Errorf("unknown tag %d: %w", tag, ErrInvalidInstruction)
	}
}

// RecipientFieldFromAddress reinterprets an opaque address as a field element:
// the address bytes are zero-padded or truncated to 32, read as a
// little-endian integer, and reduced into the field. This is how the
// withdrawal recipient is bound into the proof's public inputs; the rule must
// match the circuit's encoding bit for bit.
func RecipientFieldFromAddress(addr []byte) Field {
	var le [FieldSize]byte
	copy(le[:], addr)
	var be [FieldSize]byte
	for i := 0; i < FieldSize; i++ {
		be[i] = le[FieldSize-1-i]
	}
	var e fr.Element
	e.SetBytes(be[:])
	return FieldFromElement(&e)
}

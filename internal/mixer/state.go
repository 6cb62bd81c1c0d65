// state.go - Singleton mixer state: denomination and the rolling root history.
//
// The state mirrors the on-ledger account byte for byte:
// denomination (u64 LE) || roots (30 * 32 bytes) || current root index (u8).
// A root is valid for withdrawal only while it still occupies a slot in the
// ring buffer; once overwritten it is permanently invalid. That bounds how
// long an unspent deposit can rely on an old proof, a deliberate liveness
// trade-off rather than a correctness property of commitments.

package mixer

import "encoding/binary"

// RootHistorySize is the number of historical roots retained for withdrawal.
const RootHistorySize = 30

// StateLen is the serialized size of the state account.
const StateLen = 8 + FieldSize*RootHistorySize + 1

// State is the mixer's singleton configuration and root history.
type State struct {
	Denomination     uint64
	Roots            [RootHistorySize]Field
	CurrentRootIndex uint8
}

// NewState creates an initialized state with an empty root window.
func NewState(denomination uint64) *State {
	return &State{Denomination: denomination}
}

// PushRoot writes the root into the slot after the cursor, overwriting the
// oldest entry, and advances the cursor.
func (s *State) PushRoot(root Field) {
	next := (int(s.CurrentRootIndex) + 1) % RootHistorySize
	s.Roots[next] = root
	s.CurrentRootIndex = uint8(next)
}

// IsKnownRoot reports whether the root currently occupies a slot in the
// window. The all-zero sentinel of unwritten slots is never a known root.
func (s *State) IsKnownRoot(root Field) bool {
	if root.IsZero() {
		return false
	}
	idx := int(s.CurrentRootIndex)
	for i := 0; i < RootHistorySize; i++ {
		if s.Roots[idx] == root {
			return true
		}
		if idx == 0 {
			idx = RootHistorySize - 1
		} else {
			idx--
		}
	}
	return false
}

// MarshalBinary serializes the state into the fixed account layout.
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, StateLen)
	binary.LittleEndian.PutUint64(buf[0:8], s.Denomination)
	for i := 0; i < RootHistorySize; i++ {
		copy(buf[8+i*FieldSize:], s.Roots[i][:])
	}
	buf[StateLen-1] = s.CurrentRootIndex
	return buf, nil
}

// UnmarshalBinary parses the fixed account layout.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != StateLen {
		return ErrInvalidLength
	}
	s.Denomination = binary.LittleEndian.Uint64(data[0:8])
	for i := 0; i < RootHistorySize; i++ {
		copy(s.Roots[i][:], data[8+i*FieldSize:8+(i+1)*FieldSize])
	}
	s.CurrentRootIndex = data[StateLen-1]
	return nil
}

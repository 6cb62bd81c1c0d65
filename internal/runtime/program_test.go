// program_test.go - Mixer program semantics against the in-memory runtime.

package runtime

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mixer/internal/mixer"
)

// acceptAll approves every proof; withdrawal gating is under test, not
// verification.
type acceptAll struct{}

func (acceptAll) Verify([]byte, mixer.Field, mixer.Field, mixer.Field) error { return nil }

// rejectAll fails every proof.
type rejectAll struct{}

func (rejectAll) Verify([]byte, mixer.Field, mixer.Field, mixer.Field) error {
	return errors.New("bad proof")
}

func newProgram(t *testing.T, v Verifier) (*Runtime, *MixerProgram) {
	t.Helper()
	rt := New(zerolog.Nop())
	id, err := NewAddress()
	require.NoError(t, err)
	p := &MixerProgram{ID: id, Verifier: v, Log: zerolog.Nop()}
	err = rt.Execute(func(tx *Txn) error {
		return p.Process(tx, nil, mixer.EncodeInitialize(1000))
	})
	require.NoError(t, err)
	return rt, p
}

// pushRoot publishes a root and funds the vault by one denomination, the
// effect of one deposit.
func pushRoot(t *testing.T, rt *Runtime, p *MixerProgram, root mixer.Field) {
	t.Helper()
	data, err := mixer.EncodePushRoot(root[:])
	require.NoError(t, err)
	err = rt.Execute(func(tx *Txn) error {
		return p.Process(tx, nil, data)
	})
	require.NoError(t, err)
	rt.Fund(p.VaultAddress(), 1000)
}

func withdrawData(t *testing.T, root, nh mixer.Field, recipient Address) []byte {
	t.Helper()
	rf := mixer.RecipientFieldFromAddress(recipient[:])
	data, err := mixer.EncodeWithdraw(root[:], nh[:], rf[:], []byte("proof"))
	require.NoError(t, err)
	return data
}

func TestProgramInitialize(t *testing.T) {
	rt, p := newProgram(t, acceptAll{})
	require.True(t, rt.Exists(p.StateAddress()))
	require.True(t, rt.Exists(p.VaultAddress()))

	data, ok := rt.AccountData(p.StateAddress())
	require.True(t, ok)
	var st mixer.State
	require.NoError(t, st.UnmarshalBinary(data))
	require.EqualValues(t, 1000, st.Denomination)

	err := rt.Execute(func(tx *Txn) error {
		return p.Process(tx, nil, mixer.EncodeInitialize(1000))
	})
	require.ErrorIs(t, err, mixer.ErrAlreadyInitialized)
}

func TestProgramPushRoot(t *testing.T) {
	rt, p := newProgram(t, acceptAll{})
	root := mixer.FieldFromUint64(77)
	pushRoot(t, rt, p, root)

	data, ok := rt.AccountData(p.StateAddress())
	require.True(t, ok)
	var st mixer.State
	require.NoError(t, st.UnmarshalBinary(data))
	require.True(t, st.IsKnownRoot(root))
	require.False(t, st.IsKnownRoot(mixer.FieldFromUint64(78)))
}

func TestProgramWithdraw(t *testing.T) {
	root := mixer.FieldFromUint64(77)
	nh := mixer.FieldFromUint64(11)

	t.Run("Happy Path", func(t *testing.T) {
		rt, p := newProgram(t, acceptAll{})
		pushRoot(t, rt, p, root)
		recipient, _ := NewAddress()

		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{recipient}, withdrawData(t, root, nh, recipient))
		})
		require.NoError(t, err)
		require.EqualValues(t, 1000, rt.Balance(recipient))
		require.EqualValues(t, 0, rt.Balance(p.VaultAddress()))
		require.True(t, rt.Exists(p.NullifierAddress(nh)))
	})

	t.Run("Unknown Root", func(t *testing.T) {
		rt, p := newProgram(t, acceptAll{})
		pushRoot(t, rt, p, root)
		recipient, _ := NewAddress()

		stale := mixer.FieldFromUint64(999)
		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{recipient}, withdrawData(t, stale, nh, recipient))
		})
		require.ErrorIs(t, err, mixer.ErrUnknownRoot)
		require.EqualValues(t, 0, rt.Balance(recipient))
	})

	t.Run("Nullifier Reuse", func(t *testing.T) {
		rt, p := newProgram(t, acceptAll{})
		pushRoot(t, rt, p, root)
		pushRoot(t, rt, p, mixer.FieldFromUint64(78))
		recipient, _ := NewAddress()

		data := withdrawData(t, root, nh, recipient)
		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{recipient}, data)
		})
		require.NoError(t, err)

		err = rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{recipient}, data)
		})
		require.ErrorIs(t, err, mixer.ErrNullifierUsed)
		require.EqualValues(t, 1000, rt.Balance(recipient))
	})

	t.Run("Recipient Substitution", func(t *testing.T) {
		rt, p := newProgram(t, acceptAll{})
		pushRoot(t, rt, p, root)
		bound, _ := NewAddress()
		thief, _ := NewAddress()

		// Instruction binds one recipient, transaction names another.
		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{thief}, withdrawData(t, root, nh, bound))
		})
		require.ErrorIs(t, err, mixer.ErrProofRejected)
		require.EqualValues(t, 0, rt.Balance(thief))
		require.False(t, rt.Exists(p.NullifierAddress(nh)))
	})

	t.Run("Proof Rejected", func(t *testing.T) {
		rt, p := newProgram(t, rejectAll{})
		pushRoot(t, rt, p, root)
		recipient, _ := NewAddress()

		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, []Address{recipient}, withdrawData(t, root, nh, recipient))
		})
		require.ErrorIs(t, err, mixer.ErrProofRejected)
		require.EqualValues(t, 1000, rt.Balance(p.VaultAddress()))
		require.False(t, rt.Exists(p.NullifierAddress(nh)))
	})

	t.Run("Missing Recipient Account", func(t *testing.T) {
		rt, p := newProgram(t, acceptAll{})
		pushRoot(t, rt, p, root)
		recipient, _ := NewAddress()

		err := rt.Execute(func(tx *Txn) error {
			return p.Process(tx, nil, withdrawData(t, root, nh, recipient))
		})
		require.ErrorIs(t, err, mixer.ErrInvalidInstruction)
	})
}

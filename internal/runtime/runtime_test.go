// runtime_test.go - Account store, PDA derivation, and transaction atomicity.

package runtime

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	return New(zerolog.Nop())
}

func TestDerivePDA(t *testing.T) {
	programA, err := NewAddress()
	require.NoError(t, err)
	programB, err := NewAddress()
	require.NoError(t, err)

	t.Run("Deterministic", func(t *testing.T) {
		a1, bump1 := DerivePDA(programA, []byte("mixer_state"))
		a2, bump2 := DerivePDA(programA, []byte("mixer_state"))
		require.Equal(t, a1, a2)
		require.Equal(t, bump1, bump2)
	})

	t.Run("Seeds And Program Separate Addresses", func(t *testing.T) {
		state, _ := DerivePDA(programA, []byte("mixer_state"))
		vault, _ := DerivePDA(programA, []byte("vault"))
		other, _ := DerivePDA(programB, []byte("mixer_state"))
		require.NotEqual(t, state, vault)
		require.NotEqual(t, state, other)
	})

	t.Run("Multi Seed", func(t *testing.T) {
		n1, _ := DerivePDA(programA, []byte("nullifier"), []byte{1})
		n2, _ := DerivePDA(programA, []byte("nullifier"), []byte{2})
		require.NotEqual(t, n1, n2)
	})
}

func TestRuntimeAccounts(t *testing.T) {
	rt := newRuntime(t)
	addr, err := NewAddress()
	require.NoError(t, err)

	require.False(t, rt.Exists(addr))
	require.EqualValues(t, 0, rt.Balance(addr))
	_, ok := rt.AccountData(addr)
	require.False(t, ok)

	rt.Fund(addr, 500)
	require.True(t, rt.Exists(addr))
	require.EqualValues(t, 500, rt.Balance(addr))

	rt.Fund(addr, 250)
	require.EqualValues(t, 750, rt.Balance(addr))
}

func TestTransactionAtomicity(t *testing.T) {
	t.Run("Commit On Success", func(t *testing.T) {
		rt := newRuntime(t)
		from, _ := NewAddress()
		to, _ := NewAddress()
		rt.Fund(from, 100)

		err := rt.Execute(func(tx *Txn) error {
			return tx.Transfer(from, to, 40)
		})
		require.NoError(t, err)
		require.EqualValues(t, 60, rt.Balance(from))
		require.EqualValues(t, 40, rt.Balance(to))
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		rt := newRuntime(t)
		from, _ := NewAddress()
		to, _ := NewAddress()
		created, _ := NewAddress()
		rt.Fund(from, 100)

		boom := errors.New("later step failed")
		err := rt.Execute(func(tx *Txn) error {
			if err := tx.Transfer(from, to, 40); err != nil {
				return err
			}
			if err := tx.CreateAccount(created, Address{}, []byte{1}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.EqualValues(t, 100, rt.Balance(from))
		require.EqualValues(t, 0, rt.Balance(to))
		require.False(t, rt.Exists(created))
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		rt := newRuntime(t)
		from, _ := NewAddress()
		to, _ := NewAddress()
		rt.Fund(from, 10)

		err := rt.Execute(func(tx *Txn) error {
			return tx.Transfer(from, to, 11)
		})
		require.Error(t, err)
		require.EqualValues(t, 10, rt.Balance(from))
	})

	t.Run("Create Existing Account Fails", func(t *testing.T) {
		rt := newRuntime(t)
		addr, _ := NewAddress()
		rt.Fund(addr, 1)

		err := rt.Execute(func(tx *Txn) error {
			return tx.CreateAccount(addr, Address{}, nil)
		})
		require.Error(t, err)
	})

	t.Run("Staged Writes Visible In Transaction", func(t *testing.T) {
		rt := newRuntime(t)
		addr, _ := NewAddress()

		err := rt.Execute(func(tx *Txn) error {
			if err := tx.CreateAccount(addr, Address{}, []byte{7}); err != nil {
				return err
			}
			require.True(t, tx.Exists(addr))
			data, err := tx.Data(addr)
			if err != nil {
				return err
			}
			require.Equal(t, []byte{7}, data)
			return tx.SetData(addr, []byte{8})
		})
		require.NoError(t, err)
		data, ok := rt.AccountData(addr)
		require.True(t, ok)
		require.Equal(t, []byte{8}, data)
	})
}

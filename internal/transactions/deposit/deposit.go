// deposit.go - Deposit flow: commit locally, publish the root, fund the vault.
//
// A deposit is two effects of one atomic operation: the new Merkle root enters
// the rolling history and one denomination moves into the vault. The client
// mirrors the tree locally; the ledger only ever sees roots.

package deposit

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
)

// Result describes a confirmed deposit.
type Result struct {
	Note  *mixer.Note
	Index uint32
	Root  mixer.Field
}

// Deposit inserts the note's commitment into the local tree mirror and
// submits the paired (vault transfer, PushRoot) batch. Local errors, tree
// capacity included, surface before any runtime interaction.
func Deposit(tree *mixer.Tree, rt *runtime.Runtime, program *runtime.MixerProgram, depositor runtime.Address, note *mixer.Note, log zerolog.Logger) (*Result, error) {
	data, ok := rt.AccountData(program.StateAddress())
	if !ok {
		return nil, errors.New("mixer state not initialized")
	}
	var state mixer.State
	if err := state.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if rt.Balance(depositor) < state.Denomination {
		return nil, errors.New("depositor balance below denomination")
	}

	index, err := tree.Insert(note.Commitment)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	ins, err := mixer.EncodePushRoot(root[:])
	if err != nil {
		return nil, err
	}

	err = rt.Execute(func(tx *runtime.Txn) error {
		if err := tx.Transfer(depositor, program.VaultAddress(), state.Denomination); err != nil {
			return err
		}
		return program.Process(tx, nil, ins)
	})
	if err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}

	log.Info().
		Uint32("leaf_index", index).
		Str("root", root.Hex()).
		Uint64("amount", state.Denomination).
		Msg("deposit confirmed")
	return &Result{Note: note, Index: index, Root: root}, nil
}

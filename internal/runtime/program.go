// program.go - The mixer program: on-ledger semantics of the three operations.
//
// Mirrors the deployed program's behavior: Initialize creates the state
// singleton, PushRoot records a new Merkle root in the rolling window, and
// Withdraw checks the cited root, the nullifier record, and the proof before
// releasing exactly one denomination from the vault. All effects of one
// operation land atomically through the enclosing transaction.

package runtime

import (
	"fmt"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
)

// Verifier is the external proof-verification capability, referenced by the
// program and invoked during Withdraw. Implementations check the opaque
// proof-with-witness blob against the declared public inputs.
type Verifier interface {
	Verify(proofWithWitness []byte, root, nullifierHash, recipientField mixer.Field) error
}

// PDA seeds, fixed by the protocol.
var (
	seedState = []byte("mixer_state")
	seedVault = []byte("vault")
	seedNull  = []byte("nullifier")
)

// MixerProgram executes mixer instructions against a Runtime.
type MixerProgram struct {
	ID       Address
	Verifier Verifier
	Log      zerolog.Logger
}

// StateAddress locates the mixer state singleton.
func (p *MixerProgram) StateAddress() Address {
	addr, _ := DerivePDA(p.ID, seedState)
	return addr
}

// VaultAddress locates the pooled deposit balance.
func (p *MixerProgram) VaultAddress() Address {
	addr, _ := DerivePDA(p.ID, seedVault)
	return addr
}

// NullifierAddress locates the spend record for a nullifier hash. The address
// is a pure function of the hash, never chosen by the spender.
func (p *MixerProgram) NullifierAddress(nullifierHash mixer.Field) Address {
	addr, _ := DerivePDA(p.ID, seedNull, nullifierHash[:])
	return addr
}

// Process decodes and executes one instruction inside the transaction.
//
// Account conventions per instruction:
//
//	Initialize: no extra accounts
//	PushRoot:   no extra accounts
//	Withdraw:   accounts[0] = recipient
func (p *MixerProgram) Process(tx *Txn, accounts []Address, data []byte) error {
	ins, err := mixer.DecodeInstruction(data)
	if err != nil {
		return err
	}
	switch ins := ins.(type) {
	case mixer.Initialize:
		return p.processInitialize(tx, ins.Denomination)
	case mixer.PushRoot:
		return p.processPushRoot(tx, ins.Root)
	case mixer.Withdraw:
		if len(accounts) < 1 {
			return fmt.Errorf("withdraw needs a recipient account: %w", mixer.ErrInvalidInstruction)
		}
		return p.processWithdraw(tx, ins, accounts[0])
	default:
		return mixer.ErrInvalidInstruction
	}
}

func (p *MixerProgram) processInitialize(tx *Txn, denomination uint64) error {
	stateAddr := p.StateAddress()
	if tx.Exists(stateAddr) {
		return mixer.ErrAlreadyInitialized
	}
	data, err := mixer.NewState(denomination).MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.CreateAccount(stateAddr, p.ID, data); err != nil {
		return err
	}
	// The vault starts empty; deposits credit it alongside each PushRoot.
	if !tx.Exists(p.VaultAddress()) {
		if err := tx.CreateAccount(p.VaultAddress(), p.ID, nil); err != nil {
			return err
		}
	}
	p.Log.Info().Uint64("denomination", denomination).Msg("mixer initialized")
	return nil
}

func (p *MixerProgram) processPushRoot(tx *Txn, root mixer.Field) error {
	state, err := p.loadState(tx)
	if err != nil {
		return err
	}
	state.PushRoot(root)
	if err := p.storeState(tx, state); err != nil {
		return err
	}
	p.Log.Debug().Str("root", root.Hex()).Msg("root pushed")
	return nil
}

func (p *MixerProgram) processWithdraw(tx *Txn, ins mixer.Withdraw, recipient Address) error {
	state, err := p.loadState(tx)
	if err != nil {
		return err
	}
	if !state.IsKnownRoot(ins.Root) {
		return mixer.ErrUnknownRoot
	}
	nullAddr := p.NullifierAddress(ins.NullifierHash)
	if tx.Exists(nullAddr) {
		return mixer.ErrNullifierUsed
	}
	// The recipient account must be the one bound into the public inputs.
	if mixer.RecipientFieldFromAddress(recipient[:]) != ins.RecipientField {
		return fmt.Errorf("recipient does not match bound field: %w", mixer.ErrProofRejected)
	}
	if err := p.Verifier.Verify(ins.ProofWithWitness, ins.Root, ins.NullifierHash, ins.RecipientField); err != nil {
		return fmt.Errorf("%w: %v", mixer.ErrProofRejected, err)
	}
	// Mark the nullifier spent and release funds; both ride the enclosing
	// transaction, so a failure of either leaves no partial state.
	if err := tx.CreateAccount(nullAddr, p.ID, []byte{1}); err != nil {
		return err
	}
	if err := tx.Transfer(p.VaultAddress(), recipient, state.Denomination); err != nil {
		return err
	}
	p.Log.Info().
		Str("nullifier_hash", ins.NullifierHash.Hex()).
		Str("recipient", recipient.String()).
		Uint64("amount", state.Denomination).
		Msg("withdrawal executed")
	return nil
}

func (p *MixerProgram) loadState(tx *Txn) (*mixer.State, error) {
	data, err := tx.Data(p.StateAddress())
	if err != nil {
		return nil, fmt.Errorf("mixer state not initialized: %w", err)
	}
	var state mixer.State
	if err := state.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &state, nil
}

func (p *MixerProgram) storeState(tx *Txn, state *mixer.State) error {
	data, err := state.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.SetData(p.StateAddress(), data)
}

// withdraw.go - Withdrawal orchestration: proof request, submission, outcome.
//
// One Orchestrator drives one withdrawal attempt through the protocol's
// states. Proof generation is the dominant latency point and is cancellable
// through the caller's context; submission outcome is classified so callers
// know whether retrying with a fresh proof makes sense.

package withdraw

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
)

// State of one withdrawal attempt.
type State int

const (
	StateIdle State = iota
	StateProofRequested
	StateProofReady
	StateSubmitted
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProofRequested:
		return "proof_requested"
	case StateProofReady:
		return "proof_ready"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Orchestrator runs a single withdrawal flow against a shared runtime.
// Multiple orchestrators may run in parallel, each owning its own tree-proof
// snapshot; races on the root window and nullifier records are resolved by
// the runtime's atomicity, not by client-side locking.
type Orchestrator struct {
	tree    *mixer.Tree
	rt      *runtime.Runtime
	program *runtime.MixerProgram
	prover  Prover
	log     zerolog.Logger

	state State
}

// NewOrchestrator wires a withdrawal flow.
func NewOrchestrator(tree *mixer.Tree, rt *runtime.Runtime, program *runtime.MixerProgram, prover Prover, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		tree:    tree,
		rt:      rt,
		program: program,
		prover:  prover,
		log:     log,
		state:   StateIdle,
	}
}

// State returns the current state of the attempt.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(s State) {
	o.log.Debug().Stringer("from", o.state).Stringer("to", s).Msg("withdrawal state")
	o.state = s
}

// Run executes one withdrawal attempt for the note, paying out to recipient.
// Local tree and codec errors surface before any proof generation or runtime
// interaction. On rejection, use Recoverable and AlreadySpent to classify.
func (o *Orchestrator) Run(ctx context.Context, note *mixer.Note, recipient runtime.Address) error {
	// Idle -> ProofRequested: locate the leaf and assemble the witness.
	index, err := o.tree.IndexOf(note.Commitment)
	if err != nil {
		return err
	}
	path, err := o.tree.Proof(index)
	if err != nil {
		return err
	}
	req := &ProofRequest{
		Root:           path.Root,
		NullifierHash:  note.NullifierHash(),
		RecipientField: mixer.RecipientFieldFromAddress(recipient[:]),
		Nullifier:      note.Nullifier,
		Secret:         note.Secret,
		Siblings:       path.Siblings,
		IsEven:         path.IsEven,
	}
	o.transition(StateProofRequested)

	proof, publicWitness, err := o.prover.Prove(ctx, req)
	if err != nil {
		return err
	}
	o.transition(StateProofReady)

	root := req.Root
	nullifierHash := req.NullifierHash
	recipientField := req.RecipientField
	data, err := mixer.EncodeWithdraw(root[:], nullifierHash[:], recipientField[:],
		append(proof, publicWitness...))
	if err != nil {
		return err
	}
	o.transition(StateSubmitted)

	err = o.rt.Execute(func(tx *runtime.Txn) error {
		return o.program.Process(tx, []runtime.Address{recipient}, data)
	})
	if err != nil {
		o.transition(StateRejected)
		return fmt.Errorf("withdrawal rejected: %w", err)
	}
	o.transition(StateConfirmed)
	return nil
}

// Recoverable reports whether a rejection was caused by the cited root
// falling out of the history window; restarting from a fresh tree proof
// recovers from it.
func Recoverable(err error) bool {
	return errors.Is(err, mixer.ErrUnknownRoot)
}

// AlreadySpent reports whether a rejection means the nullifier record already
// exists. Terminal for the commitment: the funds have been released, possibly
// by an earlier retry of this same flow, so treat it as success-or-already-done
// rather than generating another proof.
func AlreadySpent(err error) bool {
	return errors.Is(err, mixer.ErrNullifierUsed)
}

// errors.go - Error taxonomy for the mixer protocol core.
//
// All errors are terminal for the attempted operation; nothing is retried
// internally. Callers pick their own retry policy (see the withdraw
// orchestrator for the two recoverable/terminal rejection classes).

package mixer

import "errors"

var (
	// ErrCapacityExceeded is returned by Insert once the tree holds 2^Depth leaves.
	ErrCapacityExceeded = errors.New("mixer: tree capacity exceeded")

	// ErrLeafNotFound is returned when a proof or lookup references a leaf
	// index that was never inserted.
	ErrLeafNotFound = errors.New("mixer: leaf not found")

	// ErrInvalidLength is returned by the instruction codec when a fixed-size
	// field is not exactly the documented length.
	ErrInvalidLength = errors.New("mixer: invalid field length")

	// ErrInvalidInstruction is returned when instruction bytes carry an
	// unknown tag or an undersized payload.
	ErrInvalidInstruction = errors.New("mixer: invalid instruction")

	// ErrAlreadyInitialized is returned when Initialize runs against an
	// existing mixer state account.
	ErrAlreadyInitialized = errors.New("mixer: already initialized")

	// ErrUnknownRoot is returned when a withdrawal cites a root outside the
	// current history window.
	ErrUnknownRoot = errors.New("mixer: unknown root")

	// ErrNullifierUsed is returned when a withdrawal presents a nullifier
	// hash whose record already exists.
	ErrNullifierUsed = errors.New("mixer: nullifier already used")

	// ErrProofRejected is returned when the verifier declines a proof.
	ErrProofRejected = errors.New("mixer: proof rejected")

	// ErrProverFailure is returned when the proving toolchain fails, e.g. on
	// a witness that does not satisfy the circuit.
	ErrProverFailure = errors.New("mixer: prover failure")
)

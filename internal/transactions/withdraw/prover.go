// prover.go - Proving and verifying capabilities for withdrawals.
//
// The orchestrator and the runtime both treat proof machinery as injected
// capabilities, so tests can substitute deterministic fakes without a circuit
// toolchain. The real implementations wrap gnark Groth16 over BLS12-377.

package withdraw

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"mixer/internal/mixer"
)

// ProofRequest carries everything the prover needs: the public inputs the
// proof will declare and the private witness material.
type ProofRequest struct {
	// Public inputs
	Root           mixer.Field
	NullifierHash  mixer.Field
	RecipientField mixer.Field

	// Private witness
	Nullifier mixer.Field
	Secret    mixer.Field
	Siblings  [mixer.TreeDepth]mixer.Field
	IsEven    [mixer.TreeDepth]bool
}

// Prover turns a proof request into an opaque proof blob and the serialized
// public witness. Proving may take seconds; implementations honor context
// cancellation and produce no partial artifacts when cancelled.
type Prover interface {
	Prove(ctx context.Context, req *ProofRequest) (proof, publicWitness []byte, err error)
}

// Verifier checks a proof-with-witness blob against declared public inputs.
// The runtime invokes it during Withdraw.
type Verifier interface {
	Verify(proofWithWitness []byte, root, nullifierHash, recipientField mixer.Field) error
}

// CompileCircuit compiles the withdraw circuit over BLS12-377.
func CompileCircuit() (constraint.ConstraintSystem, error) {
	var circuit Circuit
	return frontend.Compile(ecc.BLS12_377.ScalarField(), r1cs.NewBuilder, &circuit)
}

// assignment builds the full witness assignment for a request.
func (req *ProofRequest) assignment() *Circuit {
	c := &Circuit{
		Root:          req.Root.Big(),
		NullifierHash: req.NullifierHash.Big(),
		Recipient:     req.RecipientField.Big(),
		Nullifier:     req.Nullifier.Big(),
		Secret:        req.Secret.Big(),
	}
	for l := 0; l < mixer.TreeDepth; l++ {
		c.Siblings[l] = req.Siblings[l].Big()
		if req.IsEven[l] {
			c.IsEven[l] = 1
		} else {
			c.IsEven[l] = 0
		}
	}
	return c
}

// publicAssignment builds only the declared public inputs.
func publicAssignment(root, nullifierHash, recipientField mixer.Field) *Circuit {
	return &Circuit{
		Root:          root.Big(),
		NullifierHash: nullifierHash.Big(),
		Recipient:     recipientField.Big(),
	}
}

// Groth16Prover proves withdrawals with gnark Groth16.
type Groth16Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// NewGroth16Prover creates a prover from a compiled circuit and proving key.
func NewGroth16Prover(ccs constraint.ConstraintSystem, pk groth16.ProvingKey) *Groth16Prover {
	return &Groth16Prover{ccs: ccs, pk: pk}
}

// Prove generates the proof and serialized public witness. The gnark prover
// is not interruptible, so cancellation abandons the in-flight result; no
// artifact escapes a cancelled call.
func (p *Groth16Prover) Prove(ctx context.Context, req *ProofRequest) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	w, err := frontend.NewWitness(req.assignment(), ecc.BLS12_377.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", mixer.ErrProverFailure, err)
	}

	type result struct {
		proof groth16.Proof
		err   error
	}
	done := make(chan result, 1)
	go func() {
		proof, err := groth16.Prove(p.ccs, p.pk, w)
		done <- result{proof: proof, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, nil, fmt.Errorf("%w: %v", mixer.ErrProverFailure, res.err)
		}
		var proofBuf bytes.Buffer
		if _, err := res.proof.WriteTo(&proofBuf); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", mixer.ErrProverFailure, err)
		}
		pub, err := w.Public()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", mixer.ErrProverFailure, err)
		}
		var pubBuf bytes.Buffer
		if _, err := pub.WriteTo(&pubBuf); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", mixer.ErrProverFailure, err)
		}
		return proofBuf.Bytes(), pubBuf.Bytes(), nil
	}
}

// Groth16Verifier verifies withdrawals with gnark Groth16.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

// NewGroth16Verifier creates a verifier from a verifying key.
func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// Verify splits the blob into proof and public witness. The proof's
// serialization is fixed for the curve, so ReadFrom consumes exactly the
// proof bytes and the remainder is the witness blob, which must match the
// public witness rebuilt from the declared inputs.
func (v *Groth16Verifier) Verify(proofWithWitness []byte, root, nullifierHash, recipientField mixer.Field) error {
	r := bytes.NewReader(proofWithWitness)
	proof := groth16.NewProof(ecc.BLS12_377)
	if _, err := proof.ReadFrom(r); err != nil {
		return fmt.Errorf("cannot unmarshal proof: %w", err)
	}
	embedded := proofWithWitness[len(proofWithWitness)-r.Len():]

	w, err := frontend.NewWitness(publicAssignment(root, nullifierHash, recipientField),
		ecc.BLS12_377.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("cannot build public witness: %w", err)
	}
	var declared bytes.Buffer
	if _, err := w.WriteTo(&declared); err != nil {
		return fmt.Errorf("cannot serialize public witness: %w", err)
	}
	if !bytes.Equal(embedded, declared.Bytes()) {
		return fmt.Errorf("public witness does not match declared inputs")
	}
	return groth16.Verify(proof, v.vk, w)
}

// SaveProvingKey saves a Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey saves a Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

// LoadProvingKey loads a Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BLS12_377)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey loads a Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BLS12_377)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys generates or loads Groth16 keys for the circuit.
// If keys exist on disk, loads them; otherwise, generates and saves new keys.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// fake.go - Deterministic prover/verifier pair for tests and local runs.
//
// The fake proof is a hash binding of the declared public inputs; the fake
// verifier recomputes it. No circuit toolchain involved, but the pair keeps
// the contract of the real one: a proof only verifies against the exact
// public inputs it was produced for.

package withdraw

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"mixer/internal/mixer"
)

const fakeProofLen = sha256.Size

var fakeDomain = []byte("mixer-fake-proof-v1")

func fakeProof(root, nullifierHash, recipientField mixer.Field) []byte {
	h := sha256.New()
	h.Write(fakeDomain)
	h.Write(root[:])
	h.Write(nullifierHash[:])
	h.Write(recipientField[:])
	return h.Sum(nil)
}

// FakeProver produces deterministic stand-in proofs. It still checks the
// witness locally the way the circuit would, so wrong sibling paths or a
// mismatched nullifier fail with ErrProverFailure just like the real prover.
type FakeProver struct{}

func (FakeProver) Prove(ctx context.Context, req *ProofRequest) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if mixer.Hash1(req.Nullifier) != req.NullifierHash {
		return nil, nil, fmt.Errorf("%w: nullifier does not open nullifier hash", mixer.ErrProverFailure)
	}
	cur := mixer.Hash2(req.Nullifier, req.Secret)
	for l := 0; l < mixer.TreeDepth; l++ {
		if req.IsEven[l] {
			cur = mixer.Hash2(cur, req.Siblings[l])
		} else {
			cur = mixer.Hash2(req.Siblings[l], cur)
		}
	}
	if cur != req.Root {
		return nil, nil, fmt.Errorf("%w: sibling path does not reach root", mixer.ErrProverFailure)
	}
	proof := fakeProof(req.Root, req.NullifierHash, req.RecipientField)
	witness := make([]byte, 0, 3*mixer.FieldSize)
	witness = append(witness, req.Root[:]...)
	witness = append(witness, req.NullifierHash[:]...)
	witness = append(witness, req.RecipientField[:]...)
	return proof, witness, nil
}

// FakeVerifier accepts exactly the blobs FakeProver produces.
type FakeVerifier struct{}

func (FakeVerifier) Verify(proofWithWitness []byte, root, nullifierHash, recipientField mixer.Field) error {
	if len(proofWithWitness) != fakeProofLen+3*mixer.FieldSize {
		return errors.New("malformed fake proof blob")
	}
	proof := proofWithWitness[:fakeProofLen]
	witness := proofWithWitness[fakeProofLen:]
	declared := make([]byte, 0, 3*mixer.FieldSize)
	declared = append(declared, root[:]...)
	declared = append(declared, nullifierHash[:]...)
	declared = append(declared, recipientField[:]...)
	if !bytes.Equal(witness, declared) {
		return errors.New("public witness does not match declared inputs")
	}
	if !bytes.Equal(proof, fakeProof(root, nullifierHash, recipientField)) {
		return errors.New("proof does not bind declared inputs")
	}
	return nil
}

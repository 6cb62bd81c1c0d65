// note.go - Deposit note for the mixer protocol.
//
// A Note is the depositor's secret material: the nullifier and secret halves
// plus the public commitment that lands in the tree. The nullifier hash is
// revealed only at withdrawal.

package mixer

// Note holds one deposit's secrets and its public commitment.
type Note struct {
	Nullifier  Field // Secret half revealed (hashed) at withdrawal
	Secret     Field // Secret half never revealed
	Commitment Field // Hash2(Nullifier, Secret), the public tree leaf
}

// NewNote creates a note with fresh randomness and its commitment.
func NewNote() (*Note, error) {
	nullifier, err := RandomField()
	if err != nil {
		return nil, err
	}
	secret, err := RandomField()
	if err != nil {
		return nil, err
	}
	return &Note{
		Nullifier:  nullifier,
		Secret:     secret,
		Commitment: Hash2(nullifier, secret),
	}, nil
}

// NullifierHash derives the spend marker for this note.
func (n *Note) NullifierHash() Field {
	return Hash1(n.Nullifier)
}

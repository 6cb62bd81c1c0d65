// Package mixer implements the client-observable core of a fixed-denomination
// shielded pool.
//
// Overview:
//   - Commitments to (nullifier, secret) pairs accumulate in an incremental
//     Poseidon2 Merkle tree mirrored client-side
//   - Every deposit publishes the new tree root into a fixed-capacity rolling
//     history; only roots still inside that window are citable by withdrawals
//   - Withdrawals reveal the nullifier hash, whose on-ledger record blocks a
//     second spend of the same commitment
//   - The three protocol operations (Initialize, PushRoot, Withdraw) travel in
//     a fixed tagged binary layout understood by the execution environment
//
// Security model:
//   - Poseidon2 over the BLS12-377 scalar field for commitments, tree nodes
//     and nullifier hashes, matching the in-circuit hasher bit for bit
//   - Zero-knowledge proofs are generated and verified with gnark (Groth16)
//   - All randomness comes from crypto/rand
//
// The ledger runtime that applies operations atomically lives in
// internal/runtime; proof generation and the withdrawal state machine live in
// internal/transactions/withdraw.
package mixer

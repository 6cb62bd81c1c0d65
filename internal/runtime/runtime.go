// runtime.go - In-memory stand-in for the ledger execution environment.
//
// The real protocol runs inside an opaque runtime that owns typed accounts,
// applies instructions serially per account, and derives program addresses
// deterministically. This package reproduces that contract for clients and
// tests: a Runtime holds accounts, executes a transaction's effects atomically
// (all or nothing), and exposes the same derive-address scheme used to locate
// the mixer state, the vault, and nullifier records.

package runtime

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Address identifies one account.
type Address [32]byte

// Short form for logs.
func (a Address) String() string {
	return fmt.Sprintf("%x", a[:4])
}

// NewAddress draws a random account address.
func NewAddress() (Address, error) {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		return Address{}, err
	}
	return a, nil
}

// DerivePDA deterministically derives a program address from seed bytes.
// The address is a pure function of (seeds, bump, program id); nothing about
// it is chosen by the caller. The bump is fixed in this stand-in.
func DerivePDA(programID Address, seeds ...[]byte) (Address, uint8) {
	const bump = 255
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))
	var a Address
	copy(a[:], h.Sum(nil))
	return a, bump
}

// Account is one typed ledger account.
type Account struct {
	Lamports uint64
	Owner    Address
	Data     []byte
}

// Runtime is the serialized, in-memory account store.
type Runtime struct {
	mu       sync.Mutex
	accounts map[Address]*Account
	log      zerolog.Logger
}

// New creates an empty runtime.
func New(log zerolog.Logger) *Runtime {
	return &Runtime{
		accounts: make(map[Address]*Account),
		log:      log,
	}
}

// Fund credits an account, creating it if needed. Test and demo plumbing;
// the protocol itself never mints.
func (r *Runtime) Fund(addr Address, lamports uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[addr]
	if !ok {
		acc = &Account{}
		r.accounts[addr] = acc
	}
	acc.Lamports += lamports
}

// Balance returns an account's lamports, zero for absent accounts.
func (r *Runtime) Balance(addr Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[addr]; ok {
		return acc.Lamports
	}
	return 0
}

// AccountData returns a copy of an account's data, or false if the account
// does not exist.
func (r *Runtime) AccountData(addr Address) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[addr]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), acc.Data...), true
}

// Exists reports whether an account has been created.
func (r *Runtime) Exists(addr Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[addr]
	return ok
}

// Execute runs fn against a staged view of the accounts and commits its
// writes only if fn returns nil. Operations affecting the same state never
// interleave: the runtime lock serializes whole transactions, so each either
// fully applies or leaves no trace.
func (r *Runtime) Execute(fn func(*Txn) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &Txn{rt: r, staged: make(map[Address]*Account)}
	if err := fn(tx); err != nil {
		r.log.Debug().Err(err).Msg("transaction rolled back")
		return err
	}
	for addr, acc := range tx.staged {
		r.accounts[addr] = acc
	}
	return nil
}

// Txn is one in-flight transaction's copy-on-write account view.
type Txn struct {
	rt     *Runtime
	staged map[Address]*Account
}

// account returns the staged copy of an account, cloning it from the
// committed store on first touch. Returns nil if the account does not exist.
func (tx *Txn) account(addr Address) *Account {
	if acc, ok := tx.staged[addr]; ok {
		return acc
	}
	committed, ok := tx.rt.accounts[addr]
	if !ok {
		return nil
	}
	clone := &Account{
		Lamports: committed.Lamports,
		Owner:    committed.Owner,
		Data:     append([]byte(nil), committed.Data...),
	}
	tx.staged[addr] = clone
	return clone
}

// Exists reports whether the account exists in this transaction's view.
func (tx *Txn) Exists(addr Address) bool {
	return tx.account(addr) != nil
}

// Data returns the account's data within this transaction's view.
func (tx *Txn) Data(addr Address) ([]byte, error) {
	acc := tx.account(addr)
	if acc == nil {
		return nil, fmt.Errorf("account %s does not exist", addr)
	}
	return acc.Data, nil
}

// SetData replaces the account's data within this transaction's view.
func (tx *Txn) SetData(addr Address, data []byte) error {
	acc := tx.account(addr)
	if acc == nil {
		return fmt.Errorf("account %s does not exist", addr)
	}
	acc.Data = data
	return nil
}

// CreateAccount creates a new account owned by the given program. Fails if
// the address is already in use.
func (tx *Txn) CreateAccount(addr, owner Address, data []byte) error {
	if tx.account(addr) != nil {
		return fmt.Errorf("account %s already exists", addr)
	}
	tx.staged[addr] = &Account{Owner: owner, Data: data}
	return nil
}

// Transfer moves lamports between accounts, creating the destination if
// needed. Fails on insufficient balance.
func (tx *Txn) Transfer(from, to Address, lamports uint64) error {
	src := tx.account(from)
	if src == nil {
		return fmt.Errorf("account %s does not exist", from)
	}
	if src.Lamports < lamports {
		return errors.New("insufficient balance")
	}
	dst := tx.account(to)
	if dst == nil {
		dst = &Account{}
		tx.staged[to] = dst
	}
	src.Lamports -= lamports
	dst.Lamports += lamports
	return nil
}

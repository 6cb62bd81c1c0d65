// main.go - End-to-end shielded pool walkthrough.
//
// Runs the full protocol on the in-memory runtime: initialize the pool,
// make a few deposits, withdraw one note through the orchestrator with the
// real Groth16 prover, then attempt to spend the same note again and show
// the nullifier rejection.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
	"mixer/internal/transactions/deposit"
	"mixer/internal/transactions/withdraw"
)

const demoDenomination = 1_000_000_000

func main() {
	fmt.Println("=== Shielded Pool Demo ===")

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Step 1: compile the withdraw circuit and run the Groth16 setup.
	fmt.Println("\n1. Compiling withdraw circuit...")
	ccs, err := withdraw.CompileCircuit()
	if err != nil {
		fatal("circuit compilation failed", err)
	}
	fmt.Printf("Circuit compiled: %d constraints\n", ccs.GetNbConstraints())

	fmt.Println("\n2. Running Groth16 setup...")
	pk, vk, err := withdraw.SetupOrLoadKeys(ccs, "withdraw_pk.bin", "withdraw_vk.bin")
	if err != nil {
		fatal("setup failed", err)
	}
	fmt.Println("Proving and verifying keys ready")

	// Step 3: boot the runtime and initialize the pool.
	fmt.Println("\n3. Initializing pool...")
	rt := runtime.New(log)
	programID, err := runtime.NewAddress()
	if err != nil {
		fatal("address generation failed", err)
	}
	program := &runtime.MixerProgram{
		ID:       programID,
		Verifier: withdraw.NewGroth16Verifier(vk),
		Log:      log,
	}
	err = rt.Execute(func(tx *runtime.Txn) error {
		return program.Process(tx, nil, mixer.EncodeInitialize(demoDenomination))
	})
	if err != nil {
		fatal("initialize failed", err)
	}
	fmt.Printf("Pool initialized, denomination %d lamports\n", uint64(demoDenomination))

	// Step 4: three depositors fund the pool.
	fmt.Println("\n4. Depositing...")
	tree := mixer.NewTree()
	var notes []*mixer.Note
	for i := 0; i < 3; i++ {
		depositor, err := runtime.NewAddress()
		if err != nil {
			fatal("address generation failed", err)
		}
		rt.Fund(depositor, 2*demoDenomination)

		note, err := mixer.NewNote()
		if err != nil {
			fatal("note generation failed", err)
		}
		res, err := deposit.Deposit(tree, rt, program, depositor, note, log)
		if err != nil {
			fatal("deposit failed", err)
		}
		notes = append(notes, note)
		fmt.Printf("Deposit %d: leaf %d, root %s...\n", i+1, res.Index, res.Root.Hex()[:16])
	}
	fmt.Printf("Vault balance: %d lamports\n", rt.Balance(program.VaultAddress()))

	// Step 5: withdraw the second note to a fresh recipient.
	fmt.Println("\n5. Withdrawing note 2 (Groth16 proving, this takes a moment)...")
	recipient, err := runtime.NewAddress()
	if err != nil {
		fatal("address generation failed", err)
	}
	prover := withdraw.NewGroth16Prover(ccs, pk)
	orch := withdraw.NewOrchestrator(tree, rt, program, prover, log)
	if err := orch.Run(context.Background(), notes[1], recipient); err != nil {
		fatal("withdrawal failed", err)
	}
	fmt.Printf("Withdrawal confirmed, orchestrator state: %s\n", orch.State())
	fmt.Printf("Recipient balance: %d lamports\n", rt.Balance(recipient))
	fmt.Printf("Vault balance:     %d lamports\n", rt.Balance(program.VaultAddress()))

	// Step 6: try to spend the same note again.
	fmt.Println("\n6. Replaying the same note...")
	orch2 := withdraw.NewOrchestrator(tree, rt, program, prover, log)
	err = orch2.Run(context.Background(), notes[1], recipient)
	if err == nil {
		fatal("double spend was accepted", nil)
	}
	if withdraw.AlreadySpent(err) {
		fmt.Println("Rejected: nullifier already used")
	} else {
		fatal("unexpected rejection", err)
	}

	fmt.Println("\n=== Demo complete ===")
}

func fatal(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	os.Exit(1)
}

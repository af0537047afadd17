// Package consolidate plans, simulates, and submits wallet-cleanup
// transactions: token transfers, burns, account closes and SOL sweeps.
package consolidate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInstructions means the selection produced nothing to execute.
	ErrNoInstructions = errors.New("no instructions to execute")

	// ErrAccountNotEmpty rejects closing an account that still holds tokens
	// without burning them first.
	ErrAccountNotEmpty = errors.New("token account is not empty")

	// ErrConflictingSelection rejects plans that act twice on one account.
	ErrConflictingSelection = errors.New("conflicting actions for the same account")

	// ErrConfirmationTimeout means the transaction was broadcast but did not
	// reach confirmed commitment inside the deadline. It may still land;
	// this is not a failure verdict.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
)

// SimulationError reports a transaction that failed pre-flight simulation.
// Index is the position of the offending instruction, or -1 when the
// failure is not attributable to one.
type SimulationError struct {
	Index  int
	Detail string
	Logs   []string
}

func (e *SimulationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("simulation failed at instruction %d: %s", e.Index, e.Detail)
	}
	return fmt.Sprintf("simulation failed: %s", e.Detail)
}

// LedgerExecutionError reports a transaction that was confirmed on-chain
// but whose execution failed. The signature is final; the state changes
// did not happen.
type LedgerExecutionError struct {
	Signature string
	Detail    string
}

func (e *LedgerExecutionError) Error() string {
	return fmt.Sprintf("transaction %s failed on-chain: %s", e.Signature, e.Detail)
}

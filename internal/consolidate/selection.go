package consolidate

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"wallet-consolidator-go/internal/config"
	"wallet-consolidator-go/internal/discovery"
)

// Selection is the user's chosen set of actions over discovered token
// accounts. Transfer and burn are alternative actions for a funded account;
// close applies to empty accounts only. The optional SOL sweep moves the
// wallet's native balance minus a fixed reserve.
type Selection struct {
	Transfer      map[solana.PublicKey]bool
	BurnThenClose map[solana.PublicKey]bool
	Close         map[solana.PublicKey]bool
	SweepSol      bool
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{
		Transfer:      make(map[solana.PublicKey]bool),
		BurnThenClose: make(map[solana.PublicKey]bool),
		Close:         make(map[solana.PublicKey]bool),
	}
}

// SelectAllWithBalance marks every funded account for transfer.
func (s *Selection) SelectAllWithBalance(accounts []discovery.TokenAccount) {
	for _, a := range accounts {
		if !a.IsEmpty() {
			s.Transfer[a.Address] = true
		}
	}
}

// SelectAllEmpty marks every empty account for closing.
func (s *Selection) SelectAllEmpty(accounts []discovery.TokenAccount) {
	for _, a := range accounts {
		if a.IsEmpty() {
			s.Close[a.Address] = true
		}
	}
}

// Clear drops every selected action. Called only after a confirmed
// submission; failed attempts keep the selection so the user can retry.
func (s *Selection) Clear() {
	s.Transfer = make(map[solana.PublicKey]bool)
	s.BurnThenClose = make(map[solana.PublicKey]bool)
	s.Close = make(map[solana.PublicKey]bool)
	s.SweepSol = false
}

// IsEmpty reports whether nothing is selected.
func (s *Selection) IsEmpty() bool {
	return len(s.Transfer) == 0 && len(s.BurnThenClose) == 0 && len(s.Close) == 0 && !s.SweepSol
}

// Validate checks the selection against the discovered accounts: transfers
// and burns need a funded account, closes need an empty one, and no account
// may carry two actions at once.
func (s *Selection) Validate(accounts []discovery.TokenAccount) error {
	byAddress := make(map[solana.PublicKey]discovery.TokenAccount, len(accounts))
	for _, a := range accounts {
		byAddress[a.Address] = a
	}

	lookup := func(address solana.PublicKey) (discovery.TokenAccount, error) {
		a, ok := byAddress[address]
		if !ok {
			return discovery.TokenAccount{}, fmt.Errorf("selected account %s is not in the wallet", address)
		}
		return a, nil
	}

	for address := range s.Transfer {
		if s.BurnThenClose[address] || s.Close[address] {
			return fmt.Errorf("%w: %s", ErrConflictingSelection, address)
		}
		a, err := lookup(address)
		if err != nil {
			return err
		}
		if a.IsEmpty() {
			return fmt.Errorf("cannot transfer from empty account %s", address)
		}
	}

	for address := range s.BurnThenClose {
		if s.Close[address] {
			return fmt.Errorf("%w: %s", ErrConflictingSelection, address)
		}
		if _, err := lookup(address); err != nil {
			return err
		}
	}

	for address := range s.Close {
		a, err := lookup(address)
		if err != nil {
			return err
		}
		if !a.IsEmpty() {
			return fmt.Errorf("%w: %s", ErrAccountNotEmpty, address)
		}
	}

	return nil
}

// ClosableCount returns how many accounts this selection would close.
func (s *Selection) ClosableCount() int {
	return len(s.BurnThenClose) + len(s.Close)
}

// EstimatedRentReturn renders the approximate SOL reclaimed by closing the
// selected accounts, at the typical token-account rent deposit.
func (s *Selection) EstimatedRentReturn() string {
	lamports := config.ConvertSOLToLamports(config.RentPerTokenAccountSOL) * uint64(s.ClosableCount())
	return fmt.Sprintf("%.3f SOL", config.ConvertLamportsToSOL(lamports))
}

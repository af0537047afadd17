package consolidate

import (
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/sirupsen/logrus"

	"wallet-consolidator-go/internal/client"
	"wallet-consolidator-go/internal/discovery"
)

// InstructionKind tags one planned step.
type InstructionKind string

const (
	KindCreateAssociatedAccount InstructionKind = "create_associated_account"
	KindTransferToken           InstructionKind = "transfer_token"
	KindBurnToken               InstructionKind = "burn_token"
	KindCloseAccount            InstructionKind = "close_account"
	KindTransferSol             InstructionKind = "transfer_sol"
)

// PlannedInstruction is one ordered step of a consolidation plan, kept
// alongside the wire instruction for display and verification.
type PlannedInstruction struct {
	Kind        InstructionKind
	Source      solana.PublicKey
	Destination solana.PublicKey
	Mint        solana.PublicKey
	Amount      uint64
}

// Plan is an ordered instruction sequence ready for one atomic transaction.
// Either every step lands or none do.
type Plan struct {
	Owner        solana.PublicKey
	Destination  solana.PublicKey
	Steps        []PlannedInstruction
	Instructions []solana.Instruction
}

// Addresses returns every address whose balance the plan can change, for
// pre/post snapshotting. Owner and destination come first.
func (p *Plan) Addresses() []solana.PublicKey {
	seen := map[solana.PublicKey]bool{p.Owner: true, p.Destination: true}
	out := []solana.PublicKey{p.Owner, p.Destination}
	for _, step := range p.Steps {
		for _, addr := range []solana.PublicKey{step.Source, step.Destination} {
			if !addr.IsZero() && !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	return out
}

// accountChecker is the slice of the RPC client the builder needs.
type accountChecker interface {
	AccountExists(ctx context.Context, address solana.PublicKey) (bool, error)
}

// Builder converts a validated selection into an ordered instruction plan.
type Builder struct {
	checker accountChecker
	logger  *logrus.Logger
}

// NewBuilder creates an instruction builder.
func NewBuilder(checker accountChecker, logger *logrus.Logger) *Builder {
	return &Builder{checker: checker, logger: logger}
}

// BuildInput carries everything a plan needs besides the selection itself.
type BuildInput struct {
	Owner              solana.PublicKey
	DestinationAddress string
	Accounts           []discovery.TokenAccount
	// SolLamports is the owner's current native balance, used for the sweep.
	SolLamports uint64
	// SweepReserveLamports stays behind so the wallet can keep paying fees.
	SweepReserveLamports uint64
}

// Build validates the destination and selection and produces the plan:
// transfers first (each with its associated-account creation when the
// destination lacks one), then burn+close pairs, then bare closes, then the
// SOL sweep. A close of a funded account is always immediately preceded by
// its burn; the ledger rejects closing an account that still holds tokens.
func (b *Builder) Build(ctx context.Context, selection *Selection, input BuildInput) (*Plan, error) {
	destination, err := client.ValidateAddress(input.DestinationAddress)
	if err != nil {
		return nil, err
	}
	if err := selection.Validate(input.Accounts); err != nil {
		return nil, err
	}
	if selection.IsEmpty() {
		return nil, ErrNoInstructions
	}

	byAddress := make(map[solana.PublicKey]discovery.TokenAccount, len(input.Accounts))
	for _, a := range input.Accounts {
		byAddress[a.Address] = a
	}

	plan := &Plan{Owner: input.Owner, Destination: destination}
	// One existence check per distinct mint, cached across transfers.
	ataExists := make(map[solana.PublicKey]bool)

	for _, address := range sortedKeys(selection.Transfer) {
		account := byAddress[address]

		destATA, _, err := solana.FindAssociatedTokenAddress(destination, account.Mint)
		if err != nil {
			return nil, fmt.Errorf("failed to derive associated account for mint %s: %w", account.Mint, err)
		}

		exists, checked := ataExists[account.Mint]
		if !checked {
			exists, err = b.checker.AccountExists(ctx, destATA)
			if err != nil {
				return nil, fmt.Errorf("failed to check destination account for mint %s: %w", account.Mint, err)
			}
			ataExists[account.Mint] = exists
		}

		if !exists {
			plan.Steps = append(plan.Steps, PlannedInstruction{
				Kind:        KindCreateAssociatedAccount,
				Source:      input.Owner,
				Destination: destATA,
				Mint:        account.Mint,
			})
			plan.Instructions = append(plan.Instructions,
				associatedtokenaccount.NewCreateInstruction(input.Owner, destination, account.Mint).Build())
			ataExists[account.Mint] = true
		}

		plan.Steps = append(plan.Steps, PlannedInstruction{
			Kind:        KindTransferToken,
			Source:      account.Address,
			Destination: destATA,
			Mint:        account.Mint,
			Amount:      account.Amount,
		})
		plan.Instructions = append(plan.Instructions,
			token.NewTransferInstruction(account.Amount, account.Address, destATA, input.Owner, nil).Build())
	}

	for _, address := range sortedKeys(selection.BurnThenClose) {
		account := byAddress[address]

		// Burning nothing is pointless; an already-empty account just closes.
		if account.Amount > 0 {
			plan.Steps = append(plan.Steps, PlannedInstruction{
				Kind:   KindBurnToken,
				Source: account.Address,
				Mint:   account.Mint,
				Amount: account.Amount,
			})
			plan.Instructions = append(plan.Instructions,
				token.NewBurnInstruction(account.Amount, account.Address, account.Mint, input.Owner, nil).Build())
		}
		b.appendClose(plan, account, destination, input.Owner)
	}

	for _, address := range sortedKeys(selection.Close) {
		b.appendClose(plan, byAddress[address], destination, input.Owner)
	}

	if selection.SweepSol && input.SolLamports > input.SweepReserveLamports {
		amount := input.SolLamports - input.SweepReserveLamports
		plan.Steps = append(plan.Steps, PlannedInstruction{
			Kind:        KindTransferSol,
			Source:      input.Owner,
			Destination: destination,
			Amount:      amount,
		})
		plan.Instructions = append(plan.Instructions,
			system.NewTransferInstruction(amount, input.Owner, destination).Build())
	}

	if len(plan.Instructions) == 0 {
		return nil, ErrNoInstructions
	}

	b.logger.WithFields(logrus.Fields{
		"steps":       len(plan.Steps),
		"destination": destination.String(),
	}).Info("Consolidation plan built")

	return plan, nil
}

func (b *Builder) appendClose(plan *Plan, account discovery.TokenAccount, destination, owner solana.PublicKey) {
	plan.Steps = append(plan.Steps, PlannedInstruction{
		Kind:        KindCloseAccount,
		Source:      account.Address,
		Destination: destination,
		Mint:        account.Mint,
	})
	plan.Instructions = append(plan.Instructions,
		token.NewCloseAccountInstruction(account.Address, destination, owner, nil).Build())
}

// sortedKeys gives map iteration a stable order so plans are deterministic.
func sortedKeys(set map[solana.PublicKey]bool) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

package consolidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"wallet-consolidator-go/internal/config"
	"wallet-consolidator-go/internal/wallet"
)

// State is one step of the submission state machine.
type State string

const (
	StateBuilding     State = "building"
	StateSigning      State = "signing"
	StateBroadcasting State = "broadcasting"
	StatePending      State = "pending"
	StateConfirmed    State = "confirmed"
	StateFailed       State = "failed"
	StateTimedOut     State = "timed_out"
)

// Result is the outcome of one submit-confirm cycle.
type Result struct {
	State      State
	Signature  solana.Signature
	Simulation *SimulationResult
}

// ExplorerLink returns the block-explorer URL for the submitted transaction.
func (r *Result) ExplorerLink() string {
	if r.Signature.IsZero() {
		return ""
	}
	return config.ExplorerTxURL + r.Signature.String()
}

// submissionConn is the slice of the RPC client the submitter needs.
type submissionConn interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
}

// signatureWaiter is the optional push-based confirmation channel. When a
// WebSocket endpoint is available it replaces status polling; polling stays
// as the fallback when the subscription errors.
type signatureWaiter interface {
	WaitForSignature(ctx context.Context, signature solana.Signature, timeout time.Duration) (interface{}, error)
}

// Submitter drives a plan through sign, broadcast and confirmation. One
// Submitter is reused across actions; each Execute call is one attempt.
type Submitter struct {
	conn      submissionConn
	signer    wallet.Signer
	simulator *Simulator
	waiter    signatureWaiter
	notifier  Notifier
	logger    *logrus.Logger

	// Timeout bounds the whole confirmation wait; PollInterval is the
	// status polling cadence. Both are fields so tests can shrink them.
	Timeout      time.Duration
	PollInterval time.Duration

	// OnState, when set, observes every state transition.
	OnState func(State)
}

// NewSubmitter creates a submitter. simulator may be nil to skip pre-flight
// simulation; waiter may be nil to confirm by polling only.
func NewSubmitter(conn submissionConn, signer wallet.Signer, simulator *Simulator, waiter signatureWaiter, notifier Notifier, logger *logrus.Logger) *Submitter {
	return &Submitter{
		conn:         conn,
		signer:       signer,
		simulator:    simulator,
		waiter:       waiter,
		notifier:     notifier,
		logger:       logger,
		Timeout:      config.ConfirmTimeoutSec * time.Second,
		PollInterval: config.ConfirmPollIntervalMs * time.Millisecond,
	}
}

// Execute assembles the plan into a transaction, simulates it when a
// simulator is configured, signs, broadcasts and waits for confirmation.
// Every terminal state emits exactly one notification. The returned Result
// is non-nil whenever a state was reached, including failures.
func (s *Submitter) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if len(plan.Instructions) == 0 {
		return nil, ErrNoInstructions
	}

	result := &Result{State: StateBuilding}
	s.transition(result, StateBuilding)

	blockhash, err := s.conn.GetLatestBlockhash(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(plan.Instructions, blockhash, solana.TransactionPayer(plan.Owner))
	if err != nil {
		return result, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	if s.simulator != nil {
		sim, err := s.simulator.Simulate(ctx, tx, plan)
		if err != nil {
			return result, err
		}
		result.Simulation = sim
		if !sim.Success {
			s.transition(result, StateFailed)
			s.notifier.Notify(Notification{
				Title:       "Transaction would fail",
				Description: sim.Err.Error(),
				Duration:    10 * time.Second,
			})
			return result, sim.Err
		}
	}

	s.transition(result, StateSigning)
	if err := s.signer.SignTransaction(tx); err != nil {
		s.transition(result, StateFailed)
		if errors.Is(err, wallet.ErrRejected) {
			s.notifier.Notify(Notification{
				Title:       "Transaction cancelled",
				Description: "Signing was rejected in the wallet.",
				Duration:    6 * time.Second,
			})
			return result, err
		}
		s.notifier.Notify(Notification{
			Title:       "Signing failed",
			Description: err.Error(),
			Duration:    10 * time.Second,
		})
		return result, fmt.Errorf("failed to sign transaction: %w", err)
	}

	s.transition(result, StateBroadcasting)
	signature, err := s.conn.SendTransaction(ctx, tx)
	if err != nil {
		s.transition(result, StateFailed)
		s.notifier.Notify(Notification{
			Title:       "Broadcast failed",
			Description: err.Error(),
			Duration:    10 * time.Second,
		})
		return result, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	result.Signature = signature

	s.transition(result, StatePending)
	return s.awaitConfirmation(ctx, result)
}

func (s *Submitter) awaitConfirmation(ctx context.Context, result *Result) (*Result, error) {
	deadline := time.Now().Add(s.Timeout)

	if s.waiter != nil {
		onChainErr, err := s.waiter.WaitForSignature(ctx, result.Signature, s.Timeout)
		if err == nil {
			if onChainErr != nil {
				return s.failOnChain(result, onChainErr)
			}
			return s.confirm(result)
		}
		s.logger.WithError(err).Debug("WebSocket confirmation unavailable, polling instead")
	}

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return s.timeout(result)
			}

			status, err := s.conn.GetSignatureStatus(ctx, result.Signature)
			if err != nil {
				// Transient status-read failures keep the loop alive;
				// the deadline bounds the total wait.
				s.logger.WithError(err).Debug("Signature status check failed")
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return s.failOnChain(result, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return s.confirm(result)
			}
		}
	}
}

func (s *Submitter) confirm(result *Result) (*Result, error) {
	s.transition(result, StateConfirmed)
	s.notifier.Notify(Notification{
		Title:       "Transaction confirmed",
		Description: "All selected actions were applied.",
		Link:        result.ExplorerLink(),
		Duration:    8 * time.Second,
	})
	return result, nil
}

func (s *Submitter) failOnChain(result *Result, onChainErr interface{}) (*Result, error) {
	s.transition(result, StateFailed)
	execErr := &LedgerExecutionError{
		Signature: result.Signature.String(),
		Detail:    stringify(onChainErr),
	}
	s.notifier.Notify(Notification{
		Title:       "Transaction failed on-chain",
		Description: execErr.Detail,
		Link:        result.ExplorerLink(),
		Duration:    10 * time.Second,
	})
	return result, execErr
}

// timeout is distinct from failure: the transaction may still land after
// the deadline, so the user is pointed at the explorer instead of told it
// failed.
func (s *Submitter) timeout(result *Result) (*Result, error) {
	s.transition(result, StateTimedOut)
	s.notifier.Notify(Notification{
		Title:       "Confirmation timed out",
		Description: "The transaction was sent but not yet confirmed. Check the explorer before retrying.",
		Link:        result.ExplorerLink(),
		Duration:    10 * time.Second,
	})
	return result, ErrConfirmationTimeout
}

func (s *Submitter) transition(result *Result, state State) {
	result.State = state
	s.logger.WithFields(logrus.Fields{
		"state":     string(state),
		"signature": result.Signature.String(),
	}).Debug("Submission state changed")
	if s.OnState != nil {
		s.OnState(state)
	}
}

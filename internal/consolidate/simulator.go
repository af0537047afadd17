package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// BalanceDelta is the observed lamport change of one address across a
// simulation window.
type BalanceDelta struct {
	Address solana.PublicKey
	Before  uint64
	After   uint64
	Change  int64
}

// SimulationResult is the verdict of a pre-flight dry run. When Success is
// false Err holds a *SimulationError and the transaction must not be
// broadcast.
type SimulationResult struct {
	Success bool
	Err     *SimulationError
	Logs    []string
	// SolChanges holds live balance deltas observed around the dry run.
	// A dry run commits nothing, so nonzero deltas mean concurrent chain
	// activity, which is itself useful to surface before submitting.
	SolChanges []BalanceDelta
	// TokenMovements is the plan's own projection of token flows; the dry
	// run validates the instructions, the plan states what they move.
	TokenMovements []PlannedInstruction
}

// simulationConn is the slice of the RPC client the simulator needs.
type simulationConn interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error)
}

// Simulator dry-runs assembled transactions before submission.
type Simulator struct {
	conn   simulationConn
	logger *logrus.Logger
}

// NewSimulator creates a simulator.
func NewSimulator(conn simulationConn, logger *logrus.Logger) *Simulator {
	return &Simulator{conn: conn, logger: logger}
}

// Simulate snapshots the plan's addresses, dry-runs tx, and on success
// snapshots again and reports deltas. The dry run never commits state;
// callers must still treat success as advisory because the chain can move
// between simulation and submission.
func (s *Simulator) Simulate(ctx context.Context, tx *solana.Transaction, plan *Plan) (*SimulationResult, error) {
	addresses := plan.Addresses()

	before, err := s.snapshot(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot balances: %w", err)
	}

	simResult, err := s.conn.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("simulation request failed: %w", err)
	}

	if simResult.Err != nil {
		simErr := parseSimulationError(simResult.Err)
		simErr.Logs = simResult.Logs
		s.logger.WithFields(logrus.Fields{
			"instruction_index": simErr.Index,
			"detail":            simErr.Detail,
		}).Warn("Pre-flight simulation failed")
		return &SimulationResult{Success: false, Err: simErr, Logs: simResult.Logs}, nil
	}

	after, err := s.snapshot(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot balances: %w", err)
	}

	deltas := make([]BalanceDelta, 0, len(addresses))
	for _, address := range addresses {
		b, a := before[address], after[address]
		deltas = append(deltas, BalanceDelta{
			Address: address,
			Before:  b,
			After:   a,
			Change:  int64(a) - int64(b),
		})
	}

	return &SimulationResult{
		Success:        true,
		Logs:           simResult.Logs,
		SolChanges:     deltas,
		TokenMovements: plan.Steps,
	}, nil
}

// snapshot reads the lamport balance of every address concurrently.
func (s *Simulator) snapshot(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey]uint64, error) {
	balances := make(map[solana.PublicKey]uint64, len(addresses))
	errs := make([]error, len(addresses))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i, address := range addresses {
		wg.Add(1)
		go func(i int, address solana.PublicKey) {
			defer wg.Done()
			lamports, err := s.conn.GetBalance(ctx, address)
			if err != nil {
				errs[i] = err
				return
			}
			mu.Lock()
			balances[address] = lamports
			mu.Unlock()
		}(i, address)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return balances, nil
}

// parseSimulationError turns the cluster's structured transaction error into
// a SimulationError. Instruction failures arrive as
// {"InstructionError": [index, detail]}; anything else gets Index -1.
func parseSimulationError(raw interface{}) *SimulationError {
	simErr := &SimulationError{Index: -1, Detail: stringify(raw)}

	m, ok := raw.(map[string]interface{})
	if !ok {
		return simErr
	}
	entry, ok := m["InstructionError"]
	if !ok {
		return simErr
	}
	pair, ok := entry.([]interface{})
	if !ok || len(pair) != 2 {
		return simErr
	}
	if index, ok := pair[0].(float64); ok {
		simErr.Index = int(index)
	}
	simErr.Detail = stringify(pair[1])
	return simErr
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

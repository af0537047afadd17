package consolidate

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSimConn struct {
	mu        sync.Mutex
	balances  map[solana.PublicKey][]uint64 // successive reads pop from the front
	simResult *rpc.SimulateTransactionResult
	simErr    error
}

func (s *stubSimConn) GetBalance(_ context.Context, address solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.balances[address]
	if len(queue) == 0 {
		return 0, nil
	}
	value := queue[0]
	if len(queue) > 1 {
		s.balances[address] = queue[1:]
	}
	return value, nil
}

func (s *stubSimConn) SimulateTransaction(_ context.Context, _ *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	return s.simResult, s.simErr
}

func testPlanAndTx(t *testing.T) (*Plan, *solana.Transaction) {
	t.Helper()
	owner := solana.NewWallet()
	destination := solana.NewWallet().PublicKey()

	instruction := system.NewTransferInstruction(100, owner.PublicKey(), destination).Build()
	plan := &Plan{
		Owner:        owner.PublicKey(),
		Destination:  destination,
		Steps:        []PlannedInstruction{{Kind: KindTransferSol, Source: owner.PublicKey(), Destination: destination, Amount: 100}},
		Instructions: []solana.Instruction{instruction},
	}

	tx, err := solana.NewTransaction(plan.Instructions, solana.Hash{}, solana.TransactionPayer(plan.Owner))
	require.NoError(t, err)
	return plan, tx
}

func TestSimulateSuccessReportsDeltas(t *testing.T) {
	plan, tx := testPlanAndTx(t)

	conn := &stubSimConn{
		balances: map[solana.PublicKey][]uint64{
			plan.Owner:       {1_000, 1_000},
			plan.Destination: {0, 0},
		},
		simResult: &rpc.SimulateTransactionResult{Logs: []string{"Program 11111111111111111111111111111111 success"}},
	}

	simulator := NewSimulator(conn, quietLogger())
	result, err := simulator.Simulate(context.Background(), tx, plan)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Nil(t, result.Err)
	require.Len(t, result.SolChanges, 2)
	assert.Equal(t, plan.Owner, result.SolChanges[0].Address)
	assert.Equal(t, int64(0), result.SolChanges[0].Change)
	assert.Equal(t, plan.Steps, result.TokenMovements)
}

func TestSimulateSurfacesConcurrentDrift(t *testing.T) {
	plan, tx := testPlanAndTx(t)

	// A dry run commits nothing, so a balance change across it means
	// something else touched the account concurrently.
	conn := &stubSimConn{
		balances: map[solana.PublicKey][]uint64{
			plan.Owner:       {1_000, 900},
			plan.Destination: {0, 0},
		},
		simResult: &rpc.SimulateTransactionResult{},
	}

	simulator := NewSimulator(conn, quietLogger())
	result, err := simulator.Simulate(context.Background(), tx, plan)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, int64(-100), result.SolChanges[0].Change)
}

func TestSimulateInstructionError(t *testing.T) {
	plan, tx := testPlanAndTx(t)

	conn := &stubSimConn{
		balances: map[solana.PublicKey][]uint64{},
		simResult: &rpc.SimulateTransactionResult{
			Err: map[string]interface{}{
				"InstructionError": []interface{}{float64(2), "InvalidAccountData"},
			},
			Logs: []string{"Program log: Error"},
		},
	}

	simulator := NewSimulator(conn, quietLogger())
	result, err := simulator.Simulate(context.Background(), tx, plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, 2, result.Err.Index)
	assert.Contains(t, result.Err.Error(), "instruction 2")
	assert.Contains(t, result.Err.Error(), "InvalidAccountData")
}

func TestSimulateStructuredInstructionDetail(t *testing.T) {
	plan, tx := testPlanAndTx(t)

	conn := &stubSimConn{
		balances: map[solana.PublicKey][]uint64{},
		simResult: &rpc.SimulateTransactionResult{
			Err: map[string]interface{}{
				"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(1)}},
			},
		},
	}

	simulator := NewSimulator(conn, quietLogger())
	result, err := simulator.Simulate(context.Background(), tx, plan)
	require.NoError(t, err)

	require.NotNil(t, result.Err)
	assert.Equal(t, 0, result.Err.Index)
	assert.Contains(t, result.Err.Detail, "Custom")
}

func TestSimulateNonInstructionError(t *testing.T) {
	plan, tx := testPlanAndTx(t)

	conn := &stubSimConn{
		balances:  map[solana.PublicKey][]uint64{},
		simResult: &rpc.SimulateTransactionResult{Err: "BlockhashNotFound"},
	}

	simulator := NewSimulator(conn, quietLogger())
	result, err := simulator.Simulate(context.Background(), tx, plan)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.Err.Index)
	assert.Equal(t, "BlockhashNotFound", result.Err.Detail)
}

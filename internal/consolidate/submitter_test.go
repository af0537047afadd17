package consolidate

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-consolidator-go/internal/wallet"
)

type stubSubmitConn struct {
	sendErr  error
	sent     int
	statuses []*rpc.SignatureStatusesResult
	statusAt int
}

func (s *stubSubmitConn) GetLatestBlockhash(_ context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (s *stubSubmitConn) SendTransaction(_ context.Context, _ *solana.Transaction) (solana.Signature, error) {
	if s.sendErr != nil {
		return solana.Signature{}, s.sendErr
	}
	s.sent++
	var sig solana.Signature
	sig[0] = 1
	return sig, nil
}

func (s *stubSubmitConn) GetSignatureStatus(_ context.Context, _ solana.Signature) (*rpc.SignatureStatusesResult, error) {
	if len(s.statuses) == 0 {
		return nil, nil
	}
	status := s.statuses[s.statusAt]
	if s.statusAt < len(s.statuses)-1 {
		s.statusAt++
	}
	return status, nil
}

type recordingNotifier struct {
	notifications []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.notifications = append(r.notifications, n)
}

type rejectingSigner struct {
	key solana.PublicKey
}

func (r *rejectingSigner) PublicKey() solana.PublicKey { return r.key }

func (r *rejectingSigner) SignTransaction(_ *solana.Transaction) error {
	return wallet.ErrRejected
}

func newSubmitterFixture(t *testing.T, conn *stubSubmitConn) (*Submitter, *Plan, *recordingNotifier) {
	t.Helper()
	signer, err := wallet.NewSignerFromPrivateKey(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	destination := solana.NewWallet().PublicKey()
	plan := &Plan{
		Owner:       signer.PublicKey(),
		Destination: destination,
		Steps:       []PlannedInstruction{{Kind: KindTransferSol, Source: signer.PublicKey(), Destination: destination, Amount: 100}},
		Instructions: []solana.Instruction{
			system.NewTransferInstruction(100, signer.PublicKey(), destination).Build(),
		},
	}

	notifier := &recordingNotifier{}
	submitter := NewSubmitter(conn, signer, nil, nil, notifier, quietLogger())
	submitter.Timeout = 500 * time.Millisecond
	submitter.PollInterval = 5 * time.Millisecond
	return submitter, plan, notifier
}

func processedStatus() *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}
}

func TestExecuteConfirms(t *testing.T) {
	conn := &stubSubmitConn{statuses: []*rpc.SignatureStatusesResult{
		nil,
		processedStatus(),
		{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
	}}
	submitter, plan, notifier := newSubmitterFixture(t, conn)

	var states []State
	submitter.OnState = func(s State) { states = append(states, s) }

	result, err := submitter.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, []State{StateBuilding, StateSigning, StateBroadcasting, StatePending, StateConfirmed}, states)
	assert.Equal(t, 1, conn.sent)

	require.Len(t, notifier.notifications, 1)
	assert.Contains(t, notifier.notifications[0].Link, "solscan.io/tx/")
}

func TestExecuteTimesOutOnStalledStatus(t *testing.T) {
	// Status never advances past processed: terminal state must be
	// TimedOut, not Failed, since the transaction may still land.
	conn := &stubSubmitConn{statuses: []*rpc.SignatureStatusesResult{processedStatus()}}
	submitter, plan, notifier := newSubmitterFixture(t, conn)
	submitter.Timeout = 50 * time.Millisecond

	result, err := submitter.Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, StateTimedOut, result.State)

	require.Len(t, notifier.notifications, 1)
	assert.Contains(t, notifier.notifications[0].Description, "explorer")
}

func TestExecuteFailsOnChainError(t *testing.T) {
	conn := &stubSubmitConn{statuses: []*rpc.SignatureStatusesResult{
		{Err: map[string]interface{}{"InstructionError": []interface{}{float64(0), "InsufficientFunds"}}},
	}}
	submitter, plan, _ := newSubmitterFixture(t, conn)

	result, err := submitter.Execute(context.Background(), plan)
	require.Error(t, err)

	var execErr *LedgerExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, StateFailed, result.State)
	assert.Contains(t, execErr.Detail, "InsufficientFunds")
}

func TestExecuteUserRejectionSkipsBroadcast(t *testing.T) {
	conn := &stubSubmitConn{}
	submitter, plan, notifier := newSubmitterFixture(t, conn)
	submitter.signer = &rejectingSigner{key: plan.Owner}

	result, err := submitter.Execute(context.Background(), plan)
	assert.ErrorIs(t, err, wallet.ErrRejected)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, conn.sent, "rejected transaction must never be broadcast")
	require.Len(t, notifier.notifications, 1)
}

func TestExecuteSimulationFailureBlocksSubmission(t *testing.T) {
	conn := &stubSubmitConn{}
	submitter, plan, _ := newSubmitterFixture(t, conn)
	submitter.simulator = NewSimulator(&stubSimConn{
		balances: map[solana.PublicKey][]uint64{},
		simResult: &rpc.SimulateTransactionResult{
			Err: map[string]interface{}{"InstructionError": []interface{}{float64(1), "InvalidAccountData"}},
		},
	}, quietLogger())

	result, err := submitter.Execute(context.Background(), plan)
	require.Error(t, err)

	var simErr *SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, 1, simErr.Index)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, conn.sent, "failed simulation must block submission")
}

type stubWaiter struct {
	onChainErr interface{}
	err        error
	calls      int
}

func (s *stubWaiter) WaitForSignature(_ context.Context, _ solana.Signature, _ time.Duration) (interface{}, error) {
	s.calls++
	return s.onChainErr, s.err
}

func TestExecuteConfirmsViaWebSocket(t *testing.T) {
	conn := &stubSubmitConn{}
	submitter, plan, _ := newSubmitterFixture(t, conn)
	waiter := &stubWaiter{}
	submitter.waiter = waiter

	result, err := submitter.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, 1, waiter.calls)
}

func TestExecuteEmptyPlan(t *testing.T) {
	submitter, _, _ := newSubmitterFixture(t, &stubSubmitConn{})
	_, err := submitter.Execute(context.Background(), &Plan{})
	assert.ErrorIs(t, err, ErrNoInstructions)
}

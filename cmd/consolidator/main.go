package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"wallet-consolidator-go/internal/client"
	"wallet-consolidator-go/internal/config"
	"wallet-consolidator-go/internal/consolidate"
	"wallet-consolidator-go/internal/discovery"
	"wallet-consolidator-go/internal/logger"
	"wallet-consolidator-go/internal/metadata"
	"wallet-consolidator-go/internal/prefs"
	"wallet-consolidator-go/internal/wallet"
	"wallet-consolidator-go/pkg/fetch"
	"wallet-consolidator-go/pkg/format"
)

const Version = "1.0.0"

// CLI flags
var (
	configFile  = flag.String("config", "", "Path to config file")
	network     = flag.String("network", "", "Network to use (mainnet/devnet)")
	logLevel    = flag.String("log-level", "", "Log level (debug/info/warn/error)")
	owner       = flag.String("owner", "", "Wallet address to scan (defaults to the signing wallet)")
	destination = flag.String("destination", "", "Destination address (persisted for later runs)")

	transferAll  = flag.Bool("transfer-all", false, "Transfer every non-zero token balance to the destination")
	closeEmpty   = flag.Bool("close-empty", false, "Close every empty token account and reclaim rent")
	burnDust     = flag.Bool("burn-dust", false, "Burn every non-zero balance and close its account")
	sweepSol     = flag.Bool("sweep-sol", false, "Sweep SOL above the reserve to the destination")
	simulateOnly = flag.Bool("simulate-only", false, "Simulate the plan and exit without signing")
	listOnly     = flag.Bool("list", false, "List discovered accounts and exit")
	watch        = flag.Bool("watch", false, "Keep running and refresh balances periodically")
)

// App wires the consolidation pipeline together.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	client    *client.Client
	wsClient  *client.WSClient
	signer    wallet.Signer
	discovery *discovery.Service
	cache     *discovery.BalanceCache
	builder   *consolidate.Builder
	simulator *consolidate.Simulator
	submitter *consolidate.Submitter
	prefs     *prefs.Store
	owner     string

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyCliOverrides(cfg)

	log, err := logger.NewLogger(logger.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create application")
	}
	defer app.shutdown()

	if err := app.Run(); err != nil {
		log.WithError(err).Fatal("Run failed")
	}
}

func applyCliOverrides(cfg *config.Config) {
	if *network != "" {
		cfg.Network = *network
		cfg.RPCEndpoints = config.GetRPCEndpoints(*network)
		cfg.WSUrl = config.GetWSEndpoint(*network)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
}

// NewApp selects an endpoint and wires every component onto the shared
// connection.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rpcClient, probes, err := client.SelectEndpoint(ctx, cfg.RPCEndpoints, cfg.RPCAPIKey, config.EndpointProbeSec*time.Second, log.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("endpoint selection failed: %w", err)
	}
	for _, probe := range probes {
		if probe.Endpoint == rpcClient.Endpoint() && probe.Err == nil {
			log.LogEndpointSelected(probe.Endpoint, probe.Latency, len(probes))
		}
	}

	var signer wallet.Signer
	switch {
	case cfg.PrivateKey != "":
		signer, err = wallet.NewSignerFromPrivateKey(cfg.PrivateKey)
	case cfg.Mnemonic != "":
		signer, err = wallet.NewSignerFromMnemonic(cfg.Mnemonic)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	ownerAddress := *owner
	if ownerAddress == "" {
		if signer == nil {
			cancel()
			return nil, fmt.Errorf("no owner address: set -owner or configure a wallet key")
		}
		ownerAddress = signer.PublicKey().String()
	}

	resolver := metadata.NewResolver(rpcClient, fetch.NewClient(config.RPCRequestTimeoutMs*time.Millisecond), log.Logger)
	discoverySvc := discovery.NewService(rpcClient, resolver, log.Logger)
	cache := discovery.NewBalanceCache(discoverySvc, ownerAddress, cfg.RefreshCooldown(), cfg.RefreshDebounce(), log.Logger)

	var simulator *consolidate.Simulator
	if cfg.Consolidate.SimulateFirst || *simulateOnly {
		simulator = consolidate.NewSimulator(rpcClient, log.Logger)
	}

	var wsClient *client.WSClient
	var waiter *client.WSClient
	if cfg.Consolidate.UseWSConfirmation && cfg.WSUrl != "" {
		wsClient = client.NewWSClient(cfg.WSUrl, log.Logger)
		if err := wsClient.Connect(); err != nil {
			log.WithError(err).Warn("WebSocket unavailable, confirmations will poll")
			wsClient = nil
		} else {
			waiter = wsClient
		}
	}

	var submitter *consolidate.Submitter
	if signer != nil {
		notifier := consolidate.NewLogNotifier(log.Logger)
		if waiter != nil {
			submitter = consolidate.NewSubmitter(rpcClient, signer, simulator, waiter, notifier, log.Logger)
		} else {
			submitter = consolidate.NewSubmitter(rpcClient, signer, simulator, nil, notifier, log.Logger)
		}
		submitter.Timeout = cfg.ConfirmTimeout()
		submitter.PollInterval = cfg.PollInterval()
	}

	prefsPath := cfg.PrefsPath
	if prefsPath == "" {
		prefsPath, err = prefs.DefaultPath()
		if err != nil {
			cancel()
			return nil, err
		}
	}

	return &App{
		config:    cfg,
		logger:    log,
		client:    rpcClient,
		wsClient:  wsClient,
		signer:    signer,
		discovery: discoverySvc,
		cache:     cache,
		builder:   consolidate.NewBuilder(rpcClient, log.Logger),
		simulator: simulator,
		submitter: submitter,
		prefs:     prefs.NewStore(prefsPath),
		owner:     ownerAddress,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (a *App) Run() error {
	a.logger.LogStartup(Version, a.config.Network, a.config.RPCEndpoints)

	snapshot, err := a.cache.Refresh(a.ctx)
	if err != nil {
		return err
	}
	a.printSnapshot(snapshot)

	if *listOnly {
		return nil
	}

	selection := a.buildSelection(snapshot)
	if !selection.IsEmpty() {
		if err := a.consolidate(selection, snapshot); err != nil {
			return err
		}
	}

	if *watch {
		return a.watchLoop()
	}
	return nil
}

// buildSelection turns the action flags into a selection over the snapshot.
func (a *App) buildSelection(snapshot *discovery.WalletBalances) *consolidate.Selection {
	selection := consolidate.NewSelection()
	if *transferAll {
		selection.SelectAllWithBalance(snapshot.Accounts)
	}
	if *burnDust {
		for _, account := range snapshot.WithBalance() {
			if !selection.Transfer[account.Address] {
				selection.BurnThenClose[account.Address] = true
			}
		}
	}
	if *closeEmpty {
		selection.SelectAllEmpty(snapshot.Accounts)
	}
	selection.SweepSol = *sweepSol
	return selection
}

func (a *App) consolidate(selection *consolidate.Selection, snapshot *discovery.WalletBalances) error {
	destAddress, err := a.resolveDestination()
	if err != nil {
		return err
	}

	plan, err := a.builder.Build(a.ctx, selection, consolidate.BuildInput{
		Owner:                snapshot.Owner,
		DestinationAddress:   destAddress,
		Accounts:             snapshot.Accounts,
		SolLamports:          snapshot.SolLamports,
		SweepReserveLamports: a.config.Consolidate.SolReserveLamports,
	})
	if err != nil {
		return err
	}

	a.logger.WithComponent("consolidate").WithFields(map[string]interface{}{
		"steps":          len(plan.Steps),
		"closable":       selection.ClosableCount(),
		"estimated_rent": selection.EstimatedRentReturn(),
	}).Info("Plan ready")

	if *simulateOnly {
		return a.simulateOnlyRun(plan)
	}
	if a.submitter == nil {
		return fmt.Errorf("no signing wallet configured; use -simulate-only or set a key")
	}

	result, err := a.submitter.Execute(a.ctx, plan)
	if result != nil {
		a.logger.LogSubmissionState(string(result.State), result.Signature.String())
	}
	if err != nil {
		if result != nil && result.Signature != (solana.Signature{}) {
			a.logger.WithTransaction(result.Signature.String()).WithError(err).Warn("Submission did not confirm")
		}
		return err
	}

	// Selections survive failures; only a confirmed submission clears them.
	selection.Clear()
	a.cache.ScheduleRefresh(a.ctx)
	return nil
}

// simulateOnlyRun assembles an unsigned transaction and reports the dry run.
func (a *App) simulateOnlyRun(plan *consolidate.Plan) error {
	blockhash, err := a.client.GetLatestBlockhash(a.ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch blockhash: %w", err)
	}
	tx, err := buildUnsignedTransaction(plan, blockhash)
	if err != nil {
		return err
	}

	result, err := a.simulator.Simulate(a.ctx, tx, plan)
	if err != nil {
		return err
	}
	if !result.Success {
		return result.Err
	}

	for _, delta := range result.SolChanges {
		a.logger.WithFields(map[string]interface{}{
			"address": delta.Address.String(),
			"change":  delta.Change,
		}).Info("Projected SOL change")
	}
	for _, step := range result.TokenMovements {
		a.logger.WithFields(map[string]interface{}{
			"kind":   string(step.Kind),
			"source": step.Source.String(),
			"amount": step.Amount,
		}).Info("Planned step")
	}
	return nil
}

// resolveDestination prefers the flag, then the saved preference, then the
// wallet's own address. A flag value is persisted for later runs.
func (a *App) resolveDestination() (string, error) {
	if *destination != "" {
		if _, err := client.ValidateAddress(*destination); err != nil {
			return "", err
		}
		if err := a.prefs.SetDestination(*destination); err != nil {
			a.logger.WithError(err).Warn("Failed to persist destination preference")
		}
		return *destination, nil
	}

	saved, err := a.prefs.Destination()
	if err != nil {
		a.logger.WithError(err).Warn("Failed to read destination preference")
	}
	if saved != "" {
		return saved, nil
	}
	if a.config.Destination != "" {
		return a.config.Destination, nil
	}
	return a.owner, nil
}

func (a *App) printSnapshot(snapshot *discovery.WalletBalances) {
	a.logger.LogAccountsDiscovered(a.owner, len(snapshot.WithBalance()), len(snapshot.Empty()), snapshot.SolLamports)

	walletLog := a.logger.WithWallet(a.owner)
	walletLog.WithField("sol", format.FormatSOL(snapshot.SolLamports)).Info("Native balance")

	for _, account := range snapshot.Accounts {
		walletLog.WithFields(map[string]interface{}{
			"account": account.Address.String(),
			"token":   account.DisplayName(),
			"amount":  format.FormatUI(account.Amount, account.Decimals),
			"empty":   account.IsEmpty(),
		}).Info("Token account")
	}
}

func (a *App) watchLoop() error {
	a.cache.StartAutoRefresh(a.ctx, a.config.RefreshInterval())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(a.config.RefreshInterval())
	defer statusTicker.Stop()

	for {
		select {
		case sig := <-sigChan:
			a.logger.LogShutdown(sig.String())
			return nil
		case <-statusTicker.C:
			if snapshot := a.cache.Snapshot(); snapshot != nil {
				a.logger.WithFields(map[string]interface{}{
					"refreshed":    a.cache.AgeString(),
					"with_balance": len(snapshot.WithBalance()),
					"empty":        len(snapshot.Empty()),
				}).Info("Balances")
			}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) shutdown() {
	a.cancel()
	if a.wsClient != nil {
		a.wsClient.Close()
	}
}

func buildUnsignedTransaction(plan *consolidate.Plan, blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(plan.Instructions, blockhash, solana.TransactionPayer(plan.Owner))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}
	return tx, nil
}

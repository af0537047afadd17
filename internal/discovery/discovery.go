// Package discovery scans a wallet for its SOL balance and every token
// account it owns, and keeps a refreshable snapshot of the result.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"wallet-consolidator-go/internal/client"
	"wallet-consolidator-go/internal/config"
	"wallet-consolidator-go/internal/metadata"
)

// TokenAccount is one discovered token account, enriched with metadata when
// the mint has any.
type TokenAccount struct {
	Address  solana.PublicKey
	Mint     solana.PublicKey
	Amount   uint64
	Decimals uint8
	UIAmount string
	Metadata *metadata.TokenMetadata
}

// IsEmpty reports whether the account holds no tokens. Empty accounts still
// lock rent and are candidates for closing.
func (a TokenAccount) IsEmpty() bool {
	return a.Amount == 0
}

// DisplayName returns the best available name for the token, falling back
// to a shortened mint address for unnamed mints.
func (a TokenAccount) DisplayName() string {
	if a.Metadata != nil && a.Metadata.Name != "" {
		return a.Metadata.Name
	}
	s := a.Mint.String()
	return s[:4] + "..." + s[len(s)-4:]
}

// WalletBalances is a point-in-time snapshot of everything a wallet holds.
type WalletBalances struct {
	Owner       solana.PublicKey
	SolLamports uint64
	Accounts    []TokenAccount
	FetchedAt   time.Time
}

// WithBalance returns the accounts holding a non-zero token amount.
func (w *WalletBalances) WithBalance() []TokenAccount {
	out := make([]TokenAccount, 0, len(w.Accounts))
	for _, a := range w.Accounts {
		if !a.IsEmpty() {
			out = append(out, a)
		}
	}
	return out
}

// Empty returns the accounts holding nothing.
func (w *WalletBalances) Empty() []TokenAccount {
	out := make([]TokenAccount, 0, len(w.Accounts))
	for _, a := range w.Accounts {
		if a.IsEmpty() {
			out = append(out, a)
		}
	}
	return out
}

// balanceReader is the slice of the RPC client discovery needs.
type balanceReader interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]client.TokenAccountInfo, error)
}

// metadataResolver resolves mint metadata, returning nil for unnamed mints.
type metadataResolver interface {
	Resolve(ctx context.Context, mint solana.PublicKey) (*metadata.TokenMetadata, error)
}

// Service discovers wallet contents.
type Service struct {
	reader   balanceReader
	resolver metadataResolver
	logger   *logrus.Logger
}

// NewService creates a discovery service.
func NewService(reader balanceReader, resolver metadataResolver, logger *logrus.Logger) *Service {
	return &Service{
		reader:   reader,
		resolver: resolver,
		logger:   logger,
	}
}

// Discover validates ownerAddress and reads the wallet's SOL balance and
// token accounts, retrying transient RPC failures. Metadata resolution is
// best effort; a mint whose metadata cannot be resolved still appears in
// the snapshot without it.
func (s *Service) Discover(ctx context.Context, ownerAddress string) (*WalletBalances, error) {
	owner, err := client.ValidateAddress(ownerAddress)
	if err != nil {
		return nil, err
	}

	var (
		wg          sync.WaitGroup
		solLamports uint64
		solErr      error
		tokenInfos  []client.TokenAccountInfo
		tokenErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		solErr = s.withRetry(ctx, "getBalance", func() error {
			var err error
			solLamports, err = s.reader.GetBalance(ctx, owner)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		tokenErr = s.withRetry(ctx, "getTokenAccountsByOwner", func() error {
			var err error
			tokenInfos, err = s.reader.GetTokenAccountsByOwner(ctx, owner)
			return err
		})
	}()
	wg.Wait()

	if solErr != nil {
		return nil, fmt.Errorf("failed to fetch SOL balance: %w", solErr)
	}
	if tokenErr != nil {
		return nil, fmt.Errorf("failed to fetch token accounts: %w", tokenErr)
	}

	accounts := make([]TokenAccount, len(tokenInfos))
	var metaWG sync.WaitGroup
	for i, info := range tokenInfos {
		accounts[i] = TokenAccount{
			Address:  info.Address,
			Mint:     info.Mint,
			Amount:   info.Amount,
			Decimals: info.Decimals,
			UIAmount: info.UIAmountString,
		}

		metaWG.Add(1)
		go func(i int, mint solana.PublicKey) {
			defer metaWG.Done()
			meta, err := s.resolver.Resolve(ctx, mint)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"mint":  mint.String(),
					"error": err.Error(),
				}).Debug("Metadata resolution failed")
				return
			}
			accounts[i].Metadata = meta
		}(i, info.Mint)
	}
	metaWG.Wait()

	snapshot := &WalletBalances{
		Owner:       owner,
		SolLamports: solLamports,
		Accounts:    accounts,
		FetchedAt:   time.Now(),
	}

	s.logger.WithFields(logrus.Fields{
		"wallet":       owner.String(),
		"with_balance": len(snapshot.WithBalance()),
		"empty":        len(snapshot.Empty()),
		"sol_lamports": solLamports,
	}).Info("Wallet accounts discovered")

	return snapshot, nil
}

func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(config.MaxRetries),
		retry.Delay(config.RetryDelayMs*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(client.IsNetworkError),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithFields(logrus.Fields{
				"op":           op,
				"attempt":      n + 1,
				"rate_limited": client.IsRateLimited(err),
				"error":        err.Error(),
			}).Warn("RPC call failed, retrying")
		}),
	)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Client represents a Solana RPC client wrapper. It is the single connection
// handle shared by discovery, metadata resolution, simulation and submission.
type Client struct {
	client   *rpc.Client
	endpoint string
	logger   *logrus.Logger
}

// NewClient creates a new Solana RPC client
func NewClient(endpoint, apiKey string, logger *logrus.Logger) *Client {
	var rpcClient *rpc.Client
	if apiKey != "" {
		rpcClient = rpc.NewWithHeaders(endpoint, map[string]string{
			"Authorization": "Bearer " + apiKey,
		})
	} else {
		rpcClient = rpc.New(endpoint)
	}

	return &Client{
		client:   rpcClient,
		endpoint: endpoint,
		logger:   logger,
	}
}

// Endpoint returns the RPC endpoint this client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetSlot gets the current slot. Used as the liveness probe.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	result, err := c.client.GetSlot(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return 0, classify("getSlot", err)
	}
	return result, nil
}

// GetBalance gets an account's balance in lamports.
func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	result, err := c.client.GetBalance(ctx, address, rpc.CommitmentProcessed)
	if err != nil {
		return 0, classify("getBalance", err)
	}
	return result.Value, nil
}

// TokenAccountInfo is one token account as returned by the owner scan.
type TokenAccountInfo struct {
	Address        solana.PublicKey
	Mint           solana.PublicKey
	Owner          solana.PublicKey
	Amount         uint64
	Decimals       uint8
	UIAmountString string
}

// parsedTokenAccount mirrors the jsonParsed spl-token account layout.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount         string `json:"amount"`
				Decimals       uint8  `json:"decimals"`
				UIAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetTokenAccountsByOwner lists all token accounts owned by owner under the
// token program.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]TokenAccountInfo, error) {
	programID := solana.TokenProgramID
	result, err := c.client.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, classify("getTokenAccountsByOwner", err)
	}

	accounts := make([]TokenAccountInfo, 0, len(result.Value))
	for _, keyed := range result.Value {
		raw := keyed.Account.Data.GetRawJSON()
		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse token account %s: %w", keyed.Pubkey, err)
		}

		mint, err := solana.PublicKeyFromBase58(parsed.Parsed.Info.Mint)
		if err != nil {
			return nil, fmt.Errorf("invalid mint in token account %s: %w", keyed.Pubkey, err)
		}
		accOwner, err := solana.PublicKeyFromBase58(parsed.Parsed.Info.Owner)
		if err != nil {
			return nil, fmt.Errorf("invalid owner in token account %s: %w", keyed.Pubkey, err)
		}
		amount, err := strconv.ParseUint(parsed.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in token account %s: %w", keyed.Pubkey, err)
		}

		accounts = append(accounts, TokenAccountInfo{
			Address:        keyed.Pubkey,
			Mint:           mint,
			Owner:          accOwner,
			Amount:         amount,
			Decimals:       parsed.Parsed.Info.TokenAmount.Decimals,
			UIAmountString: parsed.Parsed.Info.TokenAmount.UIAmountString,
		})
	}

	return accounts, nil
}

// AccountExists reports whether an account exists on-chain.
func (c *Client) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := c.client.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, classify("getAccountInfo", err)
	}
	return true, nil
}

// GetAccountData reads the raw data of an account. Returns ErrNotFound if
// the account does not exist.
func (c *Client) GetAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	result, err := c.client.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify("getAccountInfo", err)
	}
	if result == nil || result.Value == nil {
		return nil, ErrNotFound
	}
	return result.Value.Data.GetBinary(), nil
}

// GetLatestBlockhash gets the most recent blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, classify("getLatestBlockhash", err)
	}
	return result.Value.Blockhash, nil
}

// SimulateTransaction dry-runs a transaction against current chain state
// without committing anything. Signature verification is skipped and the
// blockhash replaced so unsigned previews can be simulated.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	result, err := c.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             rpc.CommitmentProcessed,
	})
	if err != nil {
		return nil, classify("simulateTransaction", err)
	}
	return result.Value, nil
}

// SendTransaction sends a signed transaction to the network
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, classify("sendTransaction", err)
	}
	return sig, nil
}

// GetSignatureStatus gets single signature status (convenience method)
func (c *Client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	result, err := c.client.GetSignatureStatuses(ctx, true, signature)
	if err != nil {
		return nil, classify("getSignatureStatuses", err)
	}
	if result == nil || len(result.Value) == 0 {
		return nil, fmt.Errorf("signature not found")
	}
	return result.Value[0], nil
}

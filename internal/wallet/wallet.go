package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// ErrRejected is returned by a Signer when the key holder declines to sign.
// A rejected transaction must never be broadcast.
var ErrRejected = errors.New("signing rejected by wallet")

// Signer is the capability needed to authorize transactions. The local
// implementation holds the key in-process; hardware or remote wallets can
// satisfy the same interface.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}

// LocalSigner holds a keypair in memory.
type LocalSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSignerFromPrivateKey creates a signer from a base58-encoded private key.
func NewSignerFromPrivateKey(privateKey string) (*LocalSigner, error) {
	account, err := types.AccountFromBase58(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newLocalSigner(account), nil
}

// NewSignerFromMnemonic derives a signer from a BIP-39 mnemonic phrase.
func NewSignerFromMnemonic(mnemonic string) (*LocalSigner, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic phrase")
	}

	seed := bip39.NewSeed(mnemonic, "")
	account, err := types.AccountFromSeed(seed[:32])
	if err != nil {
		return nil, fmt.Errorf("failed to derive account from seed: %w", err)
	}
	return newLocalSigner(account), nil
}

func newLocalSigner(account types.Account) *LocalSigner {
	return &LocalSigner{
		privateKey: solana.PrivateKey(account.PrivateKey),
		publicKey:  solana.PublicKeyFromBytes(account.PublicKey.Bytes()),
	}
}

// PublicKey returns the wallet address.
func (s *LocalSigner) PublicKey() solana.PublicKey {
	return s.publicKey
}

// SignTransaction signs tx with the wallet key.
func (s *LocalSigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

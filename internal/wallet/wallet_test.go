package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewSignerFromPrivateKey(t *testing.T) {
	generated := solana.NewWallet()
	signer, err := NewSignerFromPrivateKey(generated.PrivateKey.String())
	require.NoError(t, err)

	assert.Equal(t, generated.PublicKey(), signer.PublicKey())
}

func TestNewSignerFromPrivateKeyInvalid(t *testing.T) {
	_, err := NewSignerFromPrivateKey("not-a-key")
	assert.Error(t, err)
}

func TestNewSignerFromMnemonic(t *testing.T) {
	signer, err := NewSignerFromMnemonic(testMnemonic)
	require.NoError(t, err)
	assert.False(t, signer.PublicKey().IsZero())

	// Same phrase must derive the same address.
	again, err := NewSignerFromMnemonic(testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), again.PublicKey())
}

func TestNewSignerFromMnemonicInvalid(t *testing.T) {
	_, err := NewSignerFromMnemonic("this is not a valid phrase")
	assert.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	signer, err := NewSignerFromMnemonic(testMnemonic)
	require.NoError(t, err)

	recipient := solana.NewWallet().PublicKey()
	instruction := system.NewTransferInstruction(1_000, signer.PublicKey(), recipient).Build()

	blockhash := solana.Hash{}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	require.NoError(t, err)

	require.NoError(t, signer.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}

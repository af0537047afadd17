package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertSOLToLamports(t *testing.T) {
	assert.Equal(t, uint64(LamportsPerSol), ConvertSOLToLamports(1))
	assert.Equal(t, uint64(2_000_000), ConvertSOLToLamports(RentPerTokenAccountSOL))
	assert.Equal(t, uint64(0), ConvertSOLToLamports(0))
}

func TestConvertLamportsToSOL(t *testing.T) {
	assert.Equal(t, 1.0, ConvertLamportsToSOL(LamportsPerSol))
	assert.Equal(t, 0.01, ConvertLamportsToSOL(SolSweepReserveLamports))
}

func TestGetRPCEndpoints(t *testing.T) {
	assert.Equal(t, []string{SolanaDevnetRPC}, GetRPCEndpoints("devnet"))
	assert.Equal(t, []string{SolanaMainnetRPC}, GetRPCEndpoints("mainnet"))
	assert.Equal(t, []string{SolanaMainnetRPC}, GetRPCEndpoints(""))
}

func TestGetWSEndpoint(t *testing.T) {
	assert.Equal(t, SolanaDevnetWS, GetWSEndpoint("devnet"))
	assert.Equal(t, SolanaMainnetWS, GetWSEndpoint("mainnet"))
}

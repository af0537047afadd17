package config

// Solana network constants
const (
	SolanaMainnetRPC = "https://api.mainnet-beta.solana.com"
	SolanaDevnetRPC  = "https://api.devnet.solana.com"

	// WebSocket endpoints
	SolanaMainnetWS = "wss://api.mainnet-beta.solana.com"
	SolanaDevnetWS  = "wss://api.devnet.solana.com"

	// Solana constants
	LamportsPerSol = 1_000_000_000

	// Lamports kept behind on a SOL sweep so the source account can still
	// pay rent and fees (0.01 SOL).
	SolSweepReserveLamports = LamportsPerSol / 100

	// Rent deposit reclaimed per closed token account, roughly.
	RentPerTokenAccountSOL = 0.002

	// Confirmation constants
	ConfirmTimeoutSec     = 30
	ConfirmPollIntervalMs = 1000

	// Refresh throttling
	RefreshIntervalSec  = 10
	RefreshCooldownSec  = 5
	RefreshDebounceMs   = 1000
	EndpointProbeSec    = 10
	RPCRequestTimeoutMs = 30000

	// Transient-read retry policy
	MaxRetries   = 3
	RetryDelayMs = 1000
)

// Metaplex token metadata program
const MetadataProgramAddress = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// IPFSGateways is the ordered list of mirror gateways tried when a metadata
// URI points at IPFS content. First reachable wins.
var IPFSGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://gateway.ipfs.io/ipfs/",
	"https://ipfs.fleek.co/ipfs/",
}

// ArweaveGateway is the canonical gateway for ar:// URIs.
const ArweaveGateway = "https://arweave.net/"

// ExplorerTxURL is the block-explorer prefix used in success notifications.
const ExplorerTxURL = "https://solscan.io/tx/"

// GetRPCEndpoints returns default RPC endpoint candidates for a network.
func GetRPCEndpoints(network string) []string {
	switch network {
	case "devnet":
		return []string{SolanaDevnetRPC}
	default:
		return []string{SolanaMainnetRPC}
	}
}

// GetWSEndpoint returns WebSocket endpoint based on network
func GetWSEndpoint(network string) string {
	switch network {
	case "devnet":
		return SolanaDevnetWS
	default:
		return SolanaMainnetWS
	}
}

// ConvertSOLToLamports converts SOL to lamports
func ConvertSOLToLamports(sol float64) uint64 {
	return uint64(sol * LamportsPerSol)
}

// ConvertLamportsToSOL converts lamports to SOL
func ConvertLamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}

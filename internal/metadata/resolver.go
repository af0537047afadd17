// Package metadata resolves token names, symbols and images from the
// Metaplex token metadata program and the off-chain JSON its URI points to.
package metadata

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"wallet-consolidator-go/internal/client"
	"wallet-consolidator-go/internal/config"
	"wallet-consolidator-go/pkg/fetch"
)

// TokenMetadata is everything known about a mint's identity. A mint with no
// metadata account resolves to nil rather than an error; unknown tokens are
// normal and render by mint address.
type TokenMetadata struct {
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	URI         string
	Description string
	Image       string
	// ImageCandidates holds gateway mirrors of Image, best first.
	ImageCandidates []string
}

// accountReader is the slice of the RPC client the resolver needs.
type accountReader interface {
	GetAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// Resolver resolves and caches token metadata for the lifetime of a session.
// On-chain metadata is immutable enough that per-mint results are never
// re-fetched.
type Resolver struct {
	reader    accountReader
	fetcher   *fetch.Client
	logger    *logrus.Logger
	programID solana.PublicKey

	mu    sync.Mutex
	cache map[solana.PublicKey]*TokenMetadata
}

// NewResolver creates a metadata resolver backed by reader for on-chain data
// and fetcher for off-chain JSON.
func NewResolver(reader accountReader, fetcher *fetch.Client, logger *logrus.Logger) *Resolver {
	return &Resolver{
		reader:    reader,
		fetcher:   fetcher,
		logger:    logger,
		programID: solana.MustPublicKeyFromBase58(config.MetadataProgramAddress),
		cache:     make(map[solana.PublicKey]*TokenMetadata),
	}
}

// Resolve returns metadata for mint, or (nil, nil) when the mint has no
// metadata account. Only transport failures surface as errors.
func (r *Resolver) Resolve(ctx context.Context, mint solana.PublicKey) (*TokenMetadata, error) {
	r.mu.Lock()
	cached, ok := r.cache[mint]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	pda, err := r.metadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive metadata address for %s: %w", mint, err)
	}

	data, err := r.reader.GetAccountData(ctx, pda)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			r.store(mint, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata account for %s: %w", mint, err)
	}

	name, symbol, uri, err := ParseMetadata(data)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"mint":  mint.String(),
			"error": err.Error(),
		}).Warn("Malformed metadata account, treating mint as unnamed")
		r.store(mint, nil)
		return nil, nil
	}

	meta := &TokenMetadata{
		Mint:   mint,
		Name:   name,
		Symbol: symbol,
		URI:    uri,
	}
	r.enrichOffChain(ctx, meta)
	r.store(mint, meta)
	return meta, nil
}

func (r *Resolver) store(mint solana.PublicKey, meta *TokenMetadata) {
	r.mu.Lock()
	r.cache[mint] = meta
	r.mu.Unlock()
}

// metadataAddress derives the metadata PDA for a mint:
// ["metadata", program_id, mint] under the metadata program.
func (r *Resolver) metadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{
		[]byte("metadata"),
		r.programID.Bytes(),
		mint.Bytes(),
	}
	pda, _, err := solana.FindProgramAddress(seeds, r.programID)
	return pda, err
}

// enrichOffChain fetches the JSON document behind the metadata URI and fills
// in description and image. Failures are logged and ignored; on-chain name
// and symbol are already enough to render the token.
func (r *Resolver) enrichOffChain(ctx context.Context, meta *TokenMetadata) {
	candidates := TransformURI(meta.URI)
	if len(candidates) == 0 {
		return
	}

	body, err := r.fetcher.FirstSuccess(ctx, candidates)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"mint":  meta.Mint.String(),
			"uri":   meta.URI,
			"error": err.Error(),
		}).Debug("Off-chain metadata unavailable")
		return
	}

	var doc struct {
		Name        string `json:"name"`
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		Image       string `json:"image"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		r.logger.WithField("mint", meta.Mint.String()).Debug("Off-chain metadata is not valid JSON")
		return
	}

	meta.Description = doc.Description
	meta.Image = doc.Image
	meta.ImageCandidates = TransformURI(doc.Image)
	// The JSON document is the richer source; its name and symbol replace
	// the fixed-width on-chain fields when present.
	if doc.Name != "" {
		meta.Name = doc.Name
	}
	if doc.Symbol != "" {
		meta.Symbol = doc.Symbol
	}
}

const (
	maxNameLen   = 32
	maxSymbolLen = 10
	maxURILen    = 200
)

// ParseMetadata decodes the fields we use from a Metaplex metadata account:
// a 1-byte key, 32-byte update authority, 32-byte mint, then borsh strings
// for name, symbol and uri. The on-chain strings are null-padded to fixed
// widths, so padding is stripped.
func ParseMetadata(data []byte) (name, symbol, uri string, err error) {
	offset := 1 + 32 + 32
	if len(data) < offset {
		return "", "", "", fmt.Errorf("metadata account too short: %d bytes", len(data))
	}

	name, offset, err = readPaddedString(data, offset, maxNameLen)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read name: %w", err)
	}
	symbol, offset, err = readPaddedString(data, offset, maxSymbolLen)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read symbol: %w", err)
	}
	uri, _, err = readPaddedString(data, offset, maxURILen)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read uri: %w", err)
	}
	return name, symbol, uri, nil
}

func readPaddedString(data []byte, offset, maxLen int) (string, int, error) {
	if len(data) < offset+4 {
		return "", 0, fmt.Errorf("truncated length prefix at offset %d", offset)
	}
	length := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if length > maxLen {
		return "", 0, fmt.Errorf("string length %d exceeds maximum %d", length, maxLen)
	}
	if len(data) < offset+length {
		return "", 0, fmt.Errorf("truncated string at offset %d", offset)
	}
	value := strings.TrimRight(string(data[offset:offset+length]), "\x00")
	return strings.TrimSpace(value), offset + length, nil
}

// TransformURI normalizes a metadata URI into an ordered list of fetchable
// HTTPS URLs. IPFS content gets one URL per known gateway; everything else
// maps to a single URL. An empty or unusable URI yields nil.
func TransformURI(uri string) []string {
	uri = strings.TrimSpace(strings.Trim(uri, "\x00"))
	if uri == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return ipfsCandidates(strings.TrimPrefix(uri, "ipfs://"))
	case strings.HasPrefix(uri, "ar://"):
		return []string{config.ArweaveGateway + strings.TrimPrefix(uri, "ar://")}
	case strings.Contains(uri, "/ipfs/"):
		// An HTTP URL pinned to one gateway still mirrors across all of them.
		parts := strings.SplitN(uri, "/ipfs/", 2)
		return ipfsCandidates(parts[1])
	case looksLikeCID(uri):
		return ipfsCandidates(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return []string{uri}
	default:
		return nil
	}
}

func ipfsCandidates(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	urls := make([]string, 0, len(config.IPFSGateways))
	for _, gateway := range config.IPFSGateways {
		urls = append(urls, gateway+path)
	}
	return urls
}

func looksLikeCID(s string) bool {
	return strings.HasPrefix(s, "Qm") || strings.HasPrefix(s, "bafy")
}

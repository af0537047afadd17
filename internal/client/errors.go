package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress marks input that failed local address validation. It is
// returned before any network call is made.
var ErrInvalidAddress = errors.New("invalid address")

// ErrNotFound is returned when the requested account does not exist on-chain.
var ErrNotFound = errors.New("account not found")

// NetworkError wraps a transport-level RPC failure. RateLimited marks the
// subset of failures caused by endpoint throttling; both are transient and
// safe to retry.
type NetworkError struct {
	Op          string
	RateLimited bool
	Err         error
}

func (e *NetworkError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("%s rate limited: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classify wraps an RPC error into a NetworkError, detecting rate limiting
// at the call site instead of through a process-wide interceptor.
func classify(op string, err error) error {
	return &NetworkError{
		Op:          op,
		RateLimited: looksRateLimited(err),
		Err:         err,
	}
}

func looksRateLimited(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == -32429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "too many requests")
}

// IsRateLimited reports whether err was classified as endpoint throttling.
func IsRateLimited(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.RateLimited
}

// IsNetworkError reports whether err is a transient transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// ValidateAddress checks the expected address shape: a base-58 string of
// 43 or 44 characters decoding to exactly 32 bytes. Anything else is
// ErrInvalidAddress.
func ValidateAddress(address string) (solana.PublicKey, error) {
	if len(address) < 43 || len(address) > 44 {
		return solana.PublicKey{}, fmt.Errorf("%w: %q has length %d, want 43-44", ErrInvalidAddress, address, len(address))
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q is not base58", ErrInvalidAddress, address)
	}
	if len(decoded) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %q decodes to %d bytes, want %d", ErrInvalidAddress, address, len(decoded), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(decoded), nil
}

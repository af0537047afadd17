// Package format converts between raw token units and human-readable
// decimal strings. All conversions are integer-exact; float64 is never
// used for balances.
package format

import (
	"fmt"
	"strconv"
	"strings"
)

// pow10 holds 10^0 .. 10^19, every power that fits in uint64.
var pow10 = func() [20]uint64 {
	var p [20]uint64
	p[0] = 1
	for i := 1; i < len(p); i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// FormatAmount renders a raw token amount as a decimal string using the
// mint's decimals. Trailing fractional zeros are trimmed; whole amounts
// carry no decimal point. The output round-trips through ParseAmount.
func FormatAmount(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return strconv.FormatUint(amount, 10)
	}

	scale := pow10[decimals]
	whole := amount / scale
	frac := amount % scale
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}

	fracStr := fmt.Sprintf("%0*d", decimals, frac)
	fracStr = strings.TrimRight(fracStr, "0")
	return strconv.FormatUint(whole, 10) + "." + fracStr
}

// ParseAmount converts a decimal string into raw token units. It rejects
// more fractional digits than the mint allows and amounts that overflow
// uint64.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	wholeStr, fracStr := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		wholeStr, fracStr = s[:i], s[i+1:]
	}
	if wholeStr == "" && fracStr == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if wholeStr == "" {
		wholeStr = "0"
	}
	if len(fracStr) > int(decimals) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}

	whole, err := strconv.ParseUint(wholeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	// Pad the fraction out to the mint's precision.
	fracStr += strings.Repeat("0", int(decimals)-len(fracStr))
	var frac uint64
	if fracStr != "" {
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}

	scale := pow10[decimals]
	if whole > (^uint64(0)-frac)/scale {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return whole*scale + frac, nil
}

// FormatUI renders an amount for display with thousands separators in the
// whole part, e.g. "1,234,567.89". Not parseable by ParseAmount.
func FormatUI(amount uint64, decimals uint8) string {
	plain := FormatAmount(amount, decimals)
	wholeStr, fracStr := plain, ""
	if i := strings.IndexByte(plain, '.'); i >= 0 {
		wholeStr, fracStr = plain[:i], plain[i+1:]
	}

	grouped := groupThousands(wholeStr)
	if fracStr != "" {
		return grouped + "." + fracStr
	}
	return grouped
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatSOL renders lamports as a SOL string with 9 decimals of precision.
func FormatSOL(lamports uint64) string {
	return FormatAmount(lamports, 9)
}

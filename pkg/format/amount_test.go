package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		decimals uint8
		want     string
	}{
		{"zero", 0, 6, "0"},
		{"zero decimals", 12345, 0, "12345"},
		{"whole", 5_000_000, 6, "5"},
		{"fraction trimmed", 5_100_000, 6, "5.1"},
		{"sub one", 123, 6, "0.000123"},
		{"full precision", 1, 9, "0.000000001"},
		{"nine decimals", 1_234_567_891, 9, "1.234567891"},
		{"max safe js integer", 9_007_199_254_740_991, 0, "9007199254740991"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.decimals))
		})
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("5.1", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_100_000), got)

	got, err = ParseAmount("0.000123", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(123), got)

	got, err = ParseAmount(".5", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), got)

	_, err = ParseAmount("1.2345678", 6)
	assert.Error(t, err, "too many decimal places")

	_, err = ParseAmount("", 6)
	assert.Error(t, err)

	_, err = ParseAmount("abc", 6)
	assert.Error(t, err)

	_, err = ParseAmount("99999999999999999999", 6)
	assert.Error(t, err, "overflow")
}

func TestAmountRoundTrip(t *testing.T) {
	amounts := []uint64{0, 1, 999, 1_000_000, 123_456_789, 9_007_199_254_740_991}
	for decimals := uint8(0); decimals <= 9; decimals++ {
		for _, amount := range amounts {
			s := FormatAmount(amount, decimals)
			back, err := ParseAmount(s, decimals)
			require.NoError(t, err, "amount=%d decimals=%d", amount, decimals)
			assert.Equal(t, amount, back, "amount=%d decimals=%d formatted=%q", amount, decimals, s)
		}
	}
}

func TestFormatUI(t *testing.T) {
	assert.Equal(t, "1,234,567.89", FormatUI(123_456_789, 2))
	assert.Equal(t, "999", FormatUI(999, 0))
	assert.Equal(t, "1,000", FormatUI(1_000, 0))
	assert.Equal(t, "0.5", FormatUI(500_000_000, 9))
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "1.5", FormatSOL(1_500_000_000))
	assert.Equal(t, "0.01", FormatSOL(10_000_000))
}

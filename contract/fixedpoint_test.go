package contract

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeiToDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"10000000000000000", "0.01"},
		{"1", "0.000000000000000001"},
		{"123456789000000000000", "123.456789"},
		{"-2500000000000000000", "-2.5"},
	}
	for _, tt := range tests {
		wei, ok := new(big.Int).SetString(tt.wei, 10)
		require.True(t, ok)
		assert.Equal(t, tt.want, WeiToDecimal(wei), "wei %s", tt.wei)
	}

	assert.Equal(t, "0", WeiToDecimal(nil))
}

func TestDecimalToWei(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.01", "10000000000000000"},
		{".5", "500000000000000000"},
		{"0.000000000000000001", "1"},
		{"-2.5", "-2500000000000000000"},
	}
	for _, tt := range tests {
		got, err := DecimalToWei(tt.in)
		require.NoError(t, err, "in %s", tt.in)
		assert.Equal(t, tt.want, got.String(), "in %s", tt.in)
	}
}

func TestDecimalToWei_invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "1.2.3", "0.0000000000000000001"} {
		_, err := DecimalToWei(in)
		assert.Error(t, err, "in %q", in)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0", "1", "1.5", "0.000000000000000001", "99999.123456"} {
		wei, err := DecimalToWei(s)
		require.NoError(t, err)
		assert.Equal(t, s, WeiToDecimal(wei))
	}
}

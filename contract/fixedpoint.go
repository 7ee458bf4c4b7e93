package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Chain amounts are 18-decimal fixed point; the binding layer converts to and
// from decimal strings at the boundary. Weights are plain integers and never
// pass through here.

var weiPerToken = new(big.Int).SetUint64(params.Ether)

// WeiToDecimal renders an 18-decimal fixed-point integer as a decimal string
// with trailing zeros trimmed, e.g. 1500000000000000000 -> "1.5".
func WeiToDecimal(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}

	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	quo, rem := new(big.Int).QuoRem(abs, weiPerToken, new(big.Int))
	out := quo.String()
	if rem.Sign() != 0 {
		frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}

	return out
}

// DecimalToWei parses a decimal string into an 18-decimal fixed-point
// integer. More than 18 fractional digits is an error rather than a silent
// truncation.
func DecimalToWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 18 {
		return nil, fmt.Errorf("amount %q has more than 18 decimal places", s)
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	whole.Mul(whole, weiPerToken)

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart+strings.Repeat("0", 18-len(fracPart)), 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		whole.Add(whole, frac)
	}

	if neg {
		whole.Neg(whole)
	}

	return whole, nil
}

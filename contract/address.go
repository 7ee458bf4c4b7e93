package contract

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liberdus/lp-governance/faults"
)

var addressRx = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// placeholderAddresses are sample values that ship in documentation and
// copy-paste templates; they are never accepted as real pair addresses.
var placeholderAddresses = map[string]struct{}{
	"0x1234567890123456789012345678901234567890": {},
	"0x000000000000000000000000000000000000dead": {},
}

// ParseAddress validates and normalizes a user-supplied address. The zero
// address is never an accepted input for any address field.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !addressRx.MatchString(s) {
		return common.Address{}, faults.Newf(faults.Invariant, "invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, faults.New(faults.Invariant, "zero address is not accepted")
	}

	return addr, nil
}

// IsPlaceholder reports whether addr is a known sample value.
func IsPlaceholder(addr common.Address) bool {
	_, ok := placeholderAddresses[NormalizeAddress(addr)]

	return ok
}

// NormalizeAddress renders addr in the internal lowercase-hex form used for
// equality.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

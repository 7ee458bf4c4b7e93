package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ExplorerTxURL builds the block-explorer link for a transaction hash. The
// adapter never navigates; embedding UIs render the link themselves.
func ExplorerTxURL(base string, hash common.Hash) string {
	return strings.TrimRight(base, "/") + "/tx/" + hash.Hex()
}

// lpgov is the operations CLI for the LP staking governance contract. It
// shares the coordinator stack with the browser surface: multi-endpoint
// RPC failover, the action projection and the full proposal lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/liberdus/lp-governance/pkg/logger"
)

func main() {
	lggr, err := logger.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lggr.Sync() }()

	if err := newRootCmd(lggr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

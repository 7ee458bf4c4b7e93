package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/liberdus/lp-governance/chain"
	"github.com/liberdus/lp-governance/config"
	"github.com/liberdus/lp-governance/contract"
	"github.com/liberdus/lp-governance/governance"
	"github.com/liberdus/lp-governance/pkg/logger"
)

func newRootCmd(lggr logger.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "lpgov",
		Short:         "LP staking governance operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lpgov.yaml", "Path to the config file")

	cmds := &commands{lggr: lggr, configPath: &configPath}
	cmd.AddCommand(
		cmds.newEndpointsCmd(),
		cmds.newProposalsCmd(),
		cmds.newProposeCmd(),
		cmds.newActionCmd("approve", "Approve a proposal", func(ctx context.Context, c *governance.Coordinator, id uint64) governance.Result {
			return c.Approve(ctx, id)
		}),
		cmds.newActionCmd("reject", "Reject a proposal (one rejection is terminal)", func(ctx context.Context, c *governance.Coordinator, id uint64) governance.Result {
			return c.Reject(ctx, id)
		}),
		cmds.newActionCmd("execute", "Execute a proposal that reached its threshold", func(ctx context.Context, c *governance.Coordinator, id uint64) governance.Result {
			return c.Execute(ctx, id)
		}),
		cmds.newCleanupCmd(),
	)

	return cmd
}

// commands is the factory for all lpgov subcommands, sharing the logger and
// config path.
type commands struct {
	lggr       logger.Logger
	configPath *string
}

func (c *commands) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// coordinator builds a governance coordinator. Read commands run without a
// wallet; write commands require the private key from config or env.
func (c *commands) coordinator(ctx context.Context, needsWallet bool) (*governance.Coordinator, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	var session governance.WalletSession
	if needsWallet {
		if cfg.Wallet.PrivateKey == "" {
			return nil, errors.New("this command needs a wallet; set LPGOV_WALLET_PRIVATE_KEY")
		}
		session, err = governance.NewLocalSession(cfg.Wallet.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			return nil, err
		}
	} else {
		session = readOnlySession{chainID: cfg.Chain.ChainID}
	}

	coord, err := governance.NewCoordinator(ctx, c.lggr, governance.Config{
		Endpoints:       cfg.Chain.Endpoints,
		ChainID:         cfg.Chain.ChainID,
		ContractAddress: cfg.Contract.Address,
		AdminAllowList:  cfg.Governance.AdminAllowList,
		ExplorerBase:    cfg.Chain.Explorer,
		MinHealthy:      cfg.Chain.MinHealthy,
		Timeouts:        timeouts(cfg),
		Projection: governance.ProjectionConfig{
			WindowSize:   cfg.Governance.WindowSize,
			TickInterval: cfg.Governance.TickInterval,
		},
	}, session)
	if err != nil {
		return nil, err
	}
	go coord.Run(ctx)

	return coord, nil
}

// timeouts maps the config overrides onto the chain defaults. A zero value
// keeps the default for that budget.
func timeouts(cfg *config.Config) chain.Timeouts {
	t := chain.DefaultTimeouts()
	if cfg.Chain.ProbeTimeout > 0 {
		t.Probe = cfg.Chain.ProbeTimeout
	}
	if cfg.Chain.CallTimeout > 0 {
		t.Call = cfg.Chain.CallTimeout
	}

	return t
}

func (c *commands) newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Probe and list the configured RPC endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			coord, err := c.coordinator(cmd.Context(), false)
			if err != nil {
				return err
			}

			for _, ep := range coord.Endpoints() {
				line := fmt.Sprintf("%-10s %s", ep.State, ep.URL)
				if ep.LastLatency > 0 {
					line += fmt.Sprintf("  (%s)", ep.LastLatency.Round(time.Millisecond))
				}
				cmd.Println(line)
			}

			return nil
		},
	}
}

func (c *commands) newProposalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proposals",
		Short: "List recent governance proposals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			coord, err := c.coordinator(cmd.Context(), false)
			if err != nil {
				return err
			}
			coord.Refresh(cmd.Context())

			snap := coord.Proposals()
			if snap.UnavailableReason != "" {
				return errors.New(snap.UnavailableReason)
			}
			if snap.Stale {
				cmd.Println("warning: showing last-known data, chain unreachable")
			}

			now := time.Now()
			for _, p := range snap.Proposals {
				cmd.Printf("#%-4d %-20s %-9s approvals %d/%d  expires %s\n",
					p.ID, p.Kind, p.StatusAt(now, snap.Required),
					len(p.Approvals), snap.Required,
					p.ExpiresAt.Format(time.RFC3339))
			}

			return nil
		},
	}
}

func (c *commands) newProposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Submit a new governance proposal",
	}
	cmd.AddCommand(
		c.newProposeSetRateCmd(),
		c.newProposeAddPairCmd(),
		c.newProposeRemovePairCmd(),
		c.newProposeUpdateWeightsCmd(),
		c.newProposeChangeSignerCmd(),
		c.newProposeWithdrawCmd(),
	)

	return cmd
}

func (c *commands) runPropose(cmd *cobra.Command, payload contract.Payload) error {
	coord, err := c.coordinator(cmd.Context(), true)
	if err != nil {
		return err
	}

	return c.report(cmd, coord, coord.Propose(cmd.Context(), payload))
}

func (c *commands) newProposeSetRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-rate <rate>",
		Short: "Propose a new hourly reward rate (tokens, up to 18 decimals)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPropose(cmd, contract.SetHourlyRewardRate{Rate: args[0]})
		},
	}
}

func (c *commands) newProposeAddPairCmd() *cobra.Command {
	var (
		name     string
		platform string
		weight   uint64
	)
	cmd := &cobra.Command{
		Use:   "add-pair <lp-token>",
		Short: "Propose registering a new LP pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lpToken, err := contract.ParseAddress(args[0])
			if err != nil {
				return err
			}

			return c.runPropose(cmd, contract.AddPair{
				LPToken:  lpToken,
				Name:     name,
				Platform: platform,
				Weight:   weight,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Pair name, e.g. LIB-USDT")
	cmd.Flags().StringVar(&platform, "platform", "Other", "DEX platform of the pair")
	cmd.Flags().Uint64Var(&weight, "weight", 0, "Reward weight, 1 to 10000")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("weight")

	return cmd
}

func (c *commands) newProposeRemovePairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-pair <lp-token>",
		Short: "Propose deactivating an LP pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lpToken, err := contract.ParseAddress(args[0])
			if err != nil {
				return err
			}

			return c.runPropose(cmd, contract.RemovePair{LPToken: lpToken})
		},
	}
}

func (c *commands) newProposeUpdateWeightsCmd() *cobra.Command {
	var (
		pairs   []string
		weights []uint
	)
	cmd := &cobra.Command{
		Use:   "update-weights",
		Short: "Propose new reward weights for active pairs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addrs := make([]common.Address, len(pairs))
			for i, pair := range pairs {
				addr, err := contract.ParseAddress(pair)
				if err != nil {
					return err
				}
				addrs[i] = addr
			}
			ws := make([]uint64, len(weights))
			for i, w := range weights {
				ws[i] = uint64(w)
			}

			return c.runPropose(cmd, contract.UpdatePairWeights{Pairs: addrs, Weights: ws})
		},
	}
	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "LP token address, repeatable")
	cmd.Flags().UintSliceVar(&weights, "weight", nil, "Weight for the pair at the same position, repeatable")
	_ = cmd.MarkFlagRequired("pair")
	_ = cmd.MarkFlagRequired("weight")

	return cmd
}

func (c *commands) newProposeChangeSignerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-signer <old> <new>",
		Short: "Propose swapping a governance signer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldSigner, err := contract.ParseAddress(args[0])
			if err != nil {
				return err
			}
			newSigner, err := contract.ParseAddress(args[1])
			if err != nil {
				return err
			}

			return c.runPropose(cmd, contract.ChangeSigner{Old: oldSigner, New: newSigner})
		},
	}
}

func (c *commands) newProposeWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <recipient> <amount>",
		Short: "Propose withdrawing reward tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := contract.ParseAddress(args[0])
			if err != nil {
				return err
			}

			return c.runPropose(cmd, contract.WithdrawRewards{Recipient: recipient, Amount: args[1]})
		},
	}
}

func (c *commands) newActionCmd(use, short string, run func(context.Context, *governance.Coordinator, uint64) governance.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <proposal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid proposal id %q", args[0])
			}

			coord, err := c.coordinator(cmd.Context(), true)
			if err != nil {
				return err
			}

			return c.report(cmd, coord, run(cmd.Context(), coord, id))
		},
	}
}

func (c *commands) newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Prune expired proposals from contract storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			coord, err := c.coordinator(cmd.Context(), true)
			if err != nil {
				return err
			}

			return c.report(cmd, coord, coord.Cleanup(cmd.Context()))
		},
	}
}

func (c *commands) report(cmd *cobra.Command, coord *governance.Coordinator, res governance.Result) error {
	if res.Err != nil {
		return res.Err
	}

	cmd.Printf("confirmed in block %d\n", res.Receipt.BlockNumber)
	if res.GasFallback {
		cmd.Println("note: gas estimation failed, used the fallback gas limit")
	}
	cmd.Println(coord.ExplorerURL(res.TxHash))

	return nil
}

// readOnlySession satisfies governance.WalletSession for commands that
// never sign.
type readOnlySession struct {
	chainID uint64
}

func (s readOnlySession) Address() common.Address { return common.Address{} }
func (s readOnlySession) ChainID() uint64         { return s.chainID }

func (s readOnlySession) TransactOpts(context.Context) (*bind.TransactOpts, error) {
	return nil, errors.New("no wallet configured")
}

func (s readOnlySession) AddressChanges() <-chan common.Address { return nil }
func (s readOnlySession) ChainChanges() <-chan uint64           { return nil }
func (s readOnlySession) Disconnects() <-chan struct{}          { return nil }

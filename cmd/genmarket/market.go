package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
	"github.com/alanyoungcy/genmarket/internal/service"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Call the prediction market contract",
	Long: `Read and write the prediction market contract bound by contract.address
(or the deployment record).

Write commands print the transaction hash. With --wait they block until the
transaction is ACCEPTED and print the receipt.

Examples:
  genmarket market list --category sports
  genmarket market create --title "Rain in Paris on 1 June?" --outcome Yes --outcome No \
    --resolution-date 2025-06-02 --resolution-source https://weather.example
  genmarket market bet market_1 outcome_1 --amount-eth 0.5 --wait`,
}

func withMarkets(fn func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := application.MarketService(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd.Context(), svc, cmd, args)
	}
}

var marketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List markets",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		category, _ := cmd.Flags().GetString("category")
		status, _ := cmd.Flags().GetString("status")
		markets, err := svc.GetMarkets(ctx, category, status)
		if err != nil {
			return err
		}
		return printJSON(cmd, markets)
	}),
}

var marketGetCmd = &cobra.Command{
	Use:   "get <market-id>",
	Short: "Show one market",
	Args:  cobra.ExactArgs(1),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		m, err := svc.GetMarket(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, m)
	}),
}

var marketTrendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "List trending markets",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		markets, err := svc.GetTrendingMarkets(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, markets)
	}),
}

var marketCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a market",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		var in domain.MarketInput
		in.Title, _ = f.GetString("title")
		in.Description, _ = f.GetString("description")
		in.Category, _ = f.GetString("category")
		in.ResolutionDate, _ = f.GetString("resolution-date")
		in.ResolutionSource, _ = f.GetString("resolution-source")
		in.Outcomes, _ = f.GetStringArray("outcome")
		in.MinStakeEth, _ = f.GetString("min-stake-eth")

		hash, err := svc.CreateMarket(ctx, in)
		return printTx(cmd, hash, err)
	}),
}

var marketBetCmd = &cobra.Command{
	Use:   "bet <market-id> <outcome-id>",
	Short: "Stake on an outcome",
	Args:  cobra.ExactArgs(2),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		amount, err := amountFlag(cmd)
		if err != nil {
			return err
		}
		hash, err := svc.PlaceBet(ctx, args[0], args[1], amount)
		return printTx(cmd, hash, err)
	}),
}

var marketResolveCmd = &cobra.Command{
	Use:   "resolve <market-id>",
	Short: "Resolve a market from its resolution source",
	Args:  cobra.ExactArgs(1),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		hash, err := svc.ResolveMarket(ctx, args[0])
		return printTx(cmd, hash, err)
	}),
}

var marketWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw the account's winnings",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		hash, err := svc.WithdrawBalance(ctx)
		return printTx(cmd, hash, err)
	}),
}

var marketPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List positions of an address (default: the account)",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		addr, err := addressFlag(cmd)
		if err != nil {
			return err
		}
		positions, err := svc.GetUserPositions(ctx, addr)
		if err != nil {
			return err
		}
		return printJSON(cmd, positions)
	}),
}

var marketBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the withdrawable balance of an address in wei",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		addr, err := addressFlag(cmd)
		if err != nil {
			return err
		}
		balance, err := svc.GetUserBalance(ctx, addr)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"balance": balance})
	}),
}

func init() {
	marketListCmd.Flags().String("category", "", "filter by category")
	marketListCmd.Flags().String("status", "", "filter by status (active, resolved)")

	f := marketCreateCmd.Flags()
	f.String("title", "", "market question")
	f.String("description", "", "longer description")
	f.String("category", domain.DefaultCategory, "category (sports, politics, entertainment, economics, crypto, other)")
	f.String("resolution-date", "", "date after which the market can be resolved")
	f.String("resolution-source", "", "URL the validators read to resolve")
	f.StringArray("outcome", nil, "outcome label (repeat for each outcome)")
	f.String("min-stake-eth", "0.01", "minimum stake in ether")
	_ = marketCreateCmd.MarkFlagRequired("title")

	marketBetCmd.Flags().String("amount", "", "stake in wei")
	marketBetCmd.Flags().String("amount-eth", "", "stake in ether")
	marketBetCmd.MarkFlagsMutuallyExclusive("amount", "amount-eth")
	marketBetCmd.MarkFlagsOneRequired("amount", "amount-eth")

	for _, c := range []*cobra.Command{marketPositionsCmd, marketBalanceCmd} {
		c.Flags().String("address", "", "address to query (default: the account)")
	}

	writes := []*cobra.Command{marketCreateCmd, marketBetCmd, marketResolveCmd, marketWithdrawCmd}
	for _, c := range writes {
		c.Flags().Bool("wait", false, "wait until the transaction is ACCEPTED")
	}

	marketCmd.AddCommand(marketListCmd, marketGetCmd, marketTrendingCmd, marketCreateCmd,
		marketBetCmd, marketResolveCmd, marketWithdrawCmd, marketPositionsCmd, marketBalanceCmd)
}

func amountFlag(cmd *cobra.Command) (domain.Wei, error) {
	if v, _ := cmd.Flags().GetString("amount-eth"); v != "" {
		return domain.ParseEther(v)
	}
	v, _ := cmd.Flags().GetString("amount")
	return domain.ParseWei(v)
}

func addressFlag(cmd *cobra.Command) (string, error) {
	addr, _ := cmd.Flags().GetString("address")
	addr = strings.TrimSpace(addr)
	if addr != "" && !common.IsHexAddress(addr) {
		return "", fmt.Errorf("address %q: %w", addr, domain.ErrInvalidAddress)
	}
	return addr, nil
}

// printTx prints the submitted hash, or the receipt when --wait is set.
func printTx(cmd *cobra.Command, hash common.Hash, err error) error {
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return printJSON(cmd, map[string]string{"tx_hash": hash.Hex()})
	}
	txs, err := application.TxService()
	if err != nil {
		return err
	}
	receipt, err := txs.Wait(cmd.Context(), genlayer.WaitOptions{Hash: hash, Status: domain.TxStatusAccepted})
	if err != nil {
		return fmt.Errorf("%s: %w", hash.Hex(), err)
	}
	return printJSON(cmd, receipt)
}

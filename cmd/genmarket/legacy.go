package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/service"
)

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Call the football bets contract methods",
}

var legacyCreateBetCmd = &cobra.Command{
	Use:   "create-bet <game-date> <team1> <team2> <predicted-winner>",
	Short: "Predict the winner of a game",
	Args:  cobra.ExactArgs(4),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		hash, err := svc.CreateBet(ctx, args[0], args[1], args[2], args[3])
		return printTx(cmd, hash, err)
	}),
}

var legacyResolveBetCmd = &cobra.Command{
	Use:   "resolve-bet <bet-id>",
	Short: "Resolve a bet",
	Args:  cobra.ExactArgs(1),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		hash, err := svc.ResolveBet(ctx, args[0])
		return printTx(cmd, hash, err)
	}),
}

var legacyBetsCmd = &cobra.Command{
	Use:   "bets",
	Short: "List all bets",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		raw, err := svc.GetBets(ctx)
		return printRaw(cmd, raw, err)
	}),
}

var legacyPointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Show the points table",
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, _ []string) error {
		raw, err := svc.GetPoints(ctx)
		return printRaw(cmd, raw, err)
	}),
}

var legacyPlayerPointsCmd = &cobra.Command{
	Use:   "player-points <address>",
	Short: "Show the points of one player",
	Args:  cobra.ExactArgs(1),
	RunE: withMarkets(func(ctx context.Context, svc *service.MarketService, cmd *cobra.Command, args []string) error {
		raw, err := svc.GetPlayerPoints(ctx, args[0])
		return printRaw(cmd, raw, err)
	}),
}

func init() {
	for _, c := range []*cobra.Command{legacyCreateBetCmd, legacyResolveBetCmd} {
		c.Flags().Bool("wait", false, "wait until the transaction is ACCEPTED")
	}
	legacyCmd.AddCommand(legacyCreateBetCmd, legacyResolveBetCmd, legacyBetsCmd, legacyPointsCmd, legacyPlayerPointsCmd)
}

func printRaw(cmd *cobra.Command, raw json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	return printJSON(cmd, raw)
}

package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/genlayer"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect GenLayer transactions",
}

var txStatusCmd = &cobra.Command{
	Use:   "status <hash>",
	Short: "Fetch a transaction once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := parseTxHash(args[0])
		if err != nil {
			return err
		}
		txs, err := application.TxService()
		if err != nil {
			return err
		}
		receipt, err := txs.Status(cmd.Context(), hash)
		if err != nil {
			return err
		}
		return printJSON(cmd, receipt)
	},
}

var txWaitCmd = &cobra.Command{
	Use:   "wait <hash>",
	Short: "Poll a transaction until it reaches a status",
	Long: `Poll a transaction until it reaches --status. FINALIZED also satisfies a
wait for ACCEPTED.

Examples:
  genmarket tx wait 0xabc... --status FINALIZED --retries 600 --interval 1s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := parseTxHash(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		rawStatus, _ := f.GetString("status")
		status, err := domain.ParseTransactionStatus(strings.ToUpper(rawStatus))
		if err != nil {
			return err
		}
		retries, _ := f.GetInt("retries")
		interval, _ := f.GetDuration("interval")

		txs, err := application.TxService()
		if err != nil {
			return err
		}
		receipt, err := txs.Wait(cmd.Context(), genlayer.WaitOptions{
			Hash:    hash,
			Status:  status,
			Retries: retries,
			Poll:    genlayer.PollPolicy{Interval: interval},
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, receipt)
	},
}

func init() {
	txWaitCmd.Flags().String("status", string(domain.TxStatusAccepted), "status to wait for")
	txWaitCmd.Flags().Int("retries", genlayer.DefaultWaitRetries, "polls after the first")
	txWaitCmd.Flags().Duration("interval", genlayer.DefaultWaitInterval, "delay between polls")

	txCmd.AddCommand(txStatusCmd, txWaitCmd)
}

func parseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", s)
	}
	return common.BytesToHash(b), nil
}

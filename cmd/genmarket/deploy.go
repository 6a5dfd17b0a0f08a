package main

import (
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the prediction market contract",
	Long: `Read the contract source, submit a deployment transaction and wait for it
to be FINALIZED (falling back to ACCEPTED). On success the deployment record
is written to deploy.record_path (deployed_contract.json by default).

When the transaction never reaches a tier, a diagnostic snapshot is written
to deploy.snapshot_path and the command exits with status 1.

Examples:
  GENLAYER_PRIVATE_KEY=... genmarket deploy
  genmarket deploy --contract contracts/football_bets.py --record out/deployed.json`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().String("contract", "", "contract source path (overrides deploy.contract_path)")
	deployCmd.Flags().String("record", "", "deployment record path (overrides deploy.record_path)")
	deployCmd.Flags().Bool("leader-only", false, "execute on the leader only")
	deployCmd.Flags().Bool("no-publish", false, "skip history, archive and notifications")
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfg := application.Config()
	if v, _ := cmd.Flags().GetString("contract"); v != "" {
		cfg.Deploy.ContractPath = v
	}
	if v, _ := cmd.Flags().GetString("record"); v != "" {
		cfg.Deploy.RecordPath = v
	}
	if cmd.Flags().Changed("leader-only") {
		cfg.Deploy.LeaderOnly, _ = cmd.Flags().GetBool("leader-only")
	}
	if noPublish, _ := cmd.Flags().GetBool("no-publish"); noPublish {
		cfg.Deploy.Publish = false
	}

	_, err := application.DeployMode(cmd.Context())
	return err
}

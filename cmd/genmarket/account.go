package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/crypto"
	"github.com/alanyoungcy/genmarket/internal/domain"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the persisted account used for contract calls",
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored account address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		acct, err := deps.Accounts.GetOrNull(cmd.Context())
		if err != nil {
			return err
		}
		if acct == nil {
			return errors.New("no account stored; run `genmarket account create`")
		}
		return printAccount(cmd, acct)
	},
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new account, replacing any stored one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		acct, err := deps.Accounts.Create(cmd.Context())
		if err != nil {
			return err
		}
		return printAccount(cmd, acct)
	},
}

var accountImportCmd = &cobra.Command{
	Use:   "import <private-key>",
	Short: "Store an existing private key as the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		acct, err := deps.Accounts.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printAccount(cmd, acct)
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the stored account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		if err := deps.Accounts.Remove(cmd.Context()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountShowCmd, accountCreateCmd, accountImportCmd, accountRemoveCmd)
}

func printAccount(cmd *cobra.Command, acct *crypto.Signer) error {
	return printJSON(cmd, map[string]string{"address": acct.Address().Hex()})
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read and archive the audit log (needs postgres)",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		if deps.AuditStore == nil {
			return errors.New("audit log needs postgres.enabled")
		}
		f := cmd.Flags()
		limit, _ := f.GetInt("limit")
		offset, _ := f.GetInt("offset")
		event, _ := f.GetString("event")
		tx, _ := f.GetString("tx")
		q := domain.AuditQuery{
			ListOpts:    domain.ListOpts{Limit: limit, Offset: offset},
			EventPrefix: event,
			TxHash:      tx,
		}
		if since, _ := f.GetDuration("since"); since > 0 {
			t := time.Now().Add(-since)
			q.Since = &t
		}
		entries, err := deps.AuditStore.List(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(cmd, entries)
	},
}

var auditArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export audit entries older than a cutoff to object storage",
	Long: `Export audit entries created before now minus --older-than to
archive/audit/YYYY-MM.jsonl in the configured S3 bucket.

Examples:
  genmarket audit archive --older-than 720h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := application.Dependencies(cmd.Context())
		if err != nil {
			return err
		}
		if deps.Archiver == nil {
			return errors.New("archiving needs s3.enabled")
		}
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		before := time.Now().UTC().Add(-olderThan)
		n, err := deps.Archiver.ArchiveAudit(cmd.Context(), before)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "archived %d audit entries before %s\n", n, before.Format(time.RFC3339))
		return err
	},
}

func init() {
	auditListCmd.Flags().Int("limit", 50, "maximum entries")
	auditListCmd.Flags().Int("offset", 0, "entries to skip")
	auditListCmd.Flags().Duration("since", 0, "only entries newer than this (e.g. 24h)")
	auditListCmd.Flags().String("event", "", "event name prefix (e.g. deploy.)")
	auditListCmd.Flags().String("tx", "", "only entries for this transaction hash")

	auditArchiveCmd.Flags().Duration("older-than", 30*24*time.Hour, "archive entries older than this")

	auditCmd.AddCommand(auditListCmd, auditArchiveCmd)
}

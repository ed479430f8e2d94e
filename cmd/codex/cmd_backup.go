package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codex/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot and restore the project store",
}

func backupService(a *app) (*backup.Service, error) {
	return backup.New(backup.Options{
		Store:    a.store,
		Dir:      a.cfg.BackupDir(),
		Schedule: a.cfg.Backup.Schedule,
		Keep:     a.cfg.Backup.Keep,
	})
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Take a snapshot now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			svc, err := backupService(a)
			if err != nil {
				return err
			}
			path, err := svc.RunOnce(cmd.Context())
			if errors.Is(err, backup.ErrNothingToBackup) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to back up")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s\n", path)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			svc, err := backupService(a)
			if err != nil {
				return err
			}
			snaps, err := svc.List()
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tTAKEN")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, humanize.Bytes(uint64(s.Size)), humanize.Time(s.Time))
			}
			return w.Flush()
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Replace the stored projects with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			svc, err := backupService(a)
			if err != nil {
				return err
			}
			if err := svc.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.projects.Reload(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%d projects)\n", args[0], len(a.projects.List()))
			return nil
		})
	},
}

func init() {
	backupCmd.AddCommand(backupRunCmd, backupListCmd, backupRestoreCmd)
}

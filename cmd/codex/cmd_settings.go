package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"codex/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change editor settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.settings.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd, s)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [json]",
	Short: "Merge a JSON patch into the settings",
	Example: `  codex settings set '{"theme":"light","tabSize":2}'`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.settings.Update(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}
			return printSettings(cmd, s)
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.settings.Reset(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd, s)
		})
	},
}

func printSettings(cmd *cobra.Command, s settings.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd, settingsResetCmd)
}

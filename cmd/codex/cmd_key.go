package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codex/internal/settings"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored Gemini API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return settings.ErrEmptyAPIKey
			}
			key = line
		}
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.keys.Set(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved (%s)\n", settings.Mask(strings.TrimSpace(key)))
			return nil
		})
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the masked API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			key, err := a.keys.Get(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case key != "":
				fmt.Fprintf(cmd.OutOrStdout(), "%s (stored)\n", settings.Mask(key))
			case a.cfg.LLM.APIKey != "":
				fmt.Fprintf(cmd.OutOrStdout(), "%s (from config)\n", settings.Mask(a.cfg.LLM.APIKey))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "No API key configured")
			}
			return nil
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.keys.Delete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
			return nil
		})
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyClearCmd)
}

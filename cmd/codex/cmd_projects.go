package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codex/internal/project"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project", "p"},
	Short:   "List and manage projects",
	RunE:    listProjects,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.projects.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			logger.Info("Project created", zap.String("id", p.ID), zap.String("name", p.Name))
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var projectsRenameCmd = &cobra.Command{
	Use:   "rename [project] [new-name]",
	Short: "Rename a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.findProject(args[0])
			if err != nil {
				return err
			}
			if err := a.projects.Rename(cmd.Context(), p.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", p.Name, args[1])
			return nil
		})
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete [project]",
	Short: "Delete a project and its chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.findProject(args[0])
			if err != nil {
				return err
			}
			if err := a.projects.Delete(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", p.Name)
			return nil
		})
	},
}

var exportFormat string
var exportOut string

var projectsExportCmd = &cobra.Command{
	Use:   "export [project]",
	Short: "Export a project as JSON or zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.findProject(args[0])
			if err != nil {
				return err
			}
			exp, err := a.projects.Export(p.ID, project.Format(exportFormat))
			if err != nil {
				return err
			}
			out := exportOut
			if out == "" {
				out = exp.FileName
			}
			if err := os.WriteFile(out, exp.Data, 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (%s)\n", p.Name, out, humanize.Bytes(uint64(len(exp.Data))))
			return nil
		})
	},
}

var projectsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a JSON or zip project export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.projects.Import(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %d files)\n", p.Name, p.ID, len(p.Files))
			return nil
		})
	},
}

func init() {
	projectsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (json, zip)")
	projectsExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default <name>.<format>)")
	projectsCmd.AddCommand(projectsCreateCmd, projectsRenameCmd, projectsDeleteCmd, projectsExportCmd, projectsImportCmd)
}

func listProjects(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		list := a.projects.List()
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects yet. Create one with: codex projects create <name>")
			return nil
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].LastModified.After(list[j].LastModified) })
		now := a.projects.Now()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFILES\tMODIFIED\tID")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.Name, len(p.Files), project.FormatRelativeTime(p.LastModified, now), p.ID)
		}
		return w.Flush()
	})
}

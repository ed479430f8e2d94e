package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codex/internal/preview"
	"codex/internal/workspace"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Inspect and edit project files",
}

var filesTreeCmd = &cobra.Command{
	Use:   "tree [project]",
	Short: "Print the project's file tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ws, _, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			root, err := ws.Tree()
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), root, "")
			return nil
		})
	},
}

func printTree(w io.Writer, n *workspace.Node, indent string) {
	if indent == "" {
		fmt.Fprintln(w, n.Name)
	}
	for i, c := range n.Children {
		branch, next := "├── ", "│   "
		if i == len(n.Children)-1 {
			branch, next = "└── ", "    "
		}
		name := c.Name
		if c.IsDir {
			name += "/"
		}
		fmt.Fprintln(w, indent+branch+name)
		if c.IsDir {
			printTree(w, c, indent+next)
		}
	}
}

var filesCatCmd = &cobra.Command{
	Use:   "cat [project] [path]",
	Short: "Print a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ws, _, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := ws.FileByPath(args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.Content)
			return nil
		})
	},
}

var filesWriteCmd = &cobra.Command{
	Use:   "write [project] [path]",
	Short: "Create or replace a file with stdin",
	Long: `Reads the file content from stdin. Missing parent folders are created.

Example:
  echo '<h1>Hi</h1>' | codex files write site /index.html`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content := string(data)
		return withApp(cmd.Context(), func(a *app) error {
			ws, _, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := workspace.CleanPath(args[1])
			_, err = ws.Batch(cmd.Context(), func(tx *workspace.Tx) error {
				if f, err := tx.FileByPath(path); err == nil {
					_, err := tx.UpdateFileContent(f.ID, content)
					return err
				}
				dir, name := workspace.SplitPath(path)
				if err := tx.MkdirAll(dir); err != nil {
					return err
				}
				_, err := tx.CreateFile(name, dir, &content)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(content))
			return nil
		})
	},
}

var filesRmCmd = &cobra.Command{
	Use:   "rm [project] [path]",
	Short: "Delete a file, or a folder with everything inside it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ws, _, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if f, err := ws.FileByPath(args[1]); err == nil {
				if _, err := ws.DeleteFile(cmd.Context(), f.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", f.Path)
				return nil
			}
			changes, err := ws.DeleteFolder(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d files)\n", workspace.CleanPath(args[1]), len(changes))
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [project] [query...]",
	Short: "Search the codebase index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			_, ix, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			results := ix.Search(strings.Join(args[1:], " "))
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%6.1f  %s  %s\n", r.Score, r.Entry.Path, r.Entry.Summary)
			}
			return nil
		})
	},
}

var openLimit int

var openCmd = &cobra.Command{
	Use:   "open [project] [pattern]",
	Short: "Fuzzy-find files by path",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 2 {
			pattern = args[1]
		}
		return withApp(cmd.Context(), func(a *app) error {
			_, ix, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range ix.QuickOpen(pattern, openLimit) {
				fmt.Fprintln(cmd.OutOrStdout(), m.Path)
			}
			return nil
		})
	},
}

var previewOut string

var previewCmd = &cobra.Command{
	Use:   "preview [project]",
	Short: "Write the assembled preview page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			ws, _, err := a.openWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := ws.Files()
			if err != nil {
				return err
			}
			page := preview.Build(files, preview.Options{NoConsole: true}).HTML
			if previewOut == "" || previewOut == "-" {
				fmt.Fprint(cmd.OutOrStdout(), page)
				return nil
			}
			if err := os.WriteFile(previewOut, []byte(page), 0644); err != nil {
				return fmt.Errorf("failed to write preview: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", previewOut)
			return nil
		})
	},
}

func init() {
	openCmd.Flags().IntVarP(&openLimit, "limit", "n", 20, "Maximum results")
	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "Output file (default stdout)")
	filesCmd.AddCommand(filesTreeCmd, filesCatCmd, filesWriteCmd, filesRmCmd)
}

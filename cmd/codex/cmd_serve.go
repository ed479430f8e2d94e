package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codex/internal/backup"
	"codex/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, live preview and scheduled backups",
	Long: `Starts the HTTP API on the configured address (default 127.0.0.1:8420).

The preview for a project is served at /preview/<project-id> and reloads
itself when files change. With backup.enabled the store is snapshotted on
backup.schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	return withApp(ctx, func(a *app) error {
		srv, err := server.New(server.Options{
			Config:   a.cfg,
			Store:    a.store,
			Projects: a.projects,
			Settings: a.settings,
			Keys:     a.keys,
			Client:   a.router,
			Registry: a.registry,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		if a.cfg.Backup.Enabled {
			svc, err := backup.New(backup.Options{
				Store:    a.store,
				Dir:      a.cfg.BackupDir(),
				Schedule: a.cfg.Backup.Schedule,
				Keep:     a.cfg.Backup.Keep,
			})
			if err != nil {
				return err
			}
			svc.Start()
			logger.Info("Backups enabled",
				zap.String("schedule", a.cfg.Backup.Schedule),
				zap.Time("next", svc.Next(time.Now())))
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := svc.Stop(stopCtx); err != nil {
					logger.Warn("Backup scheduler did not stop cleanly", zap.Error(err))
				}
			}()
		}

		g, gctx := errgroup.WithContext(ctx)
		a.watchStore(gctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "codex serving on http://%s\n", a.cfg.Server.Addr)
		return g.Wait()
	})
}

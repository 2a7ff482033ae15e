package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/conduit-lang/metanode/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile the scene whenever the config file changes",
		Long: `Load the scene, reconcile it and keep watching the config file. Every
saved edit to the relink, check and remove tables is applied and the scene is
reconciled and saved again. Edits that fail to load are logged and ignored.

Examples:
  # Watch ./metanode.yaml
  metanode watch

  # Watch another config
  metanode watch --config shots/a/metanode.yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.File == "" {
				return fmt.Errorf("watch: %w", config.ErrNoFile)
			}

			s, err := openSessionWith(ctx, cfg, opts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			// an in-flight save finishes after Ctrl+C
			rw := newReloader(context.WithoutCancel(ctx), s, opts)
			if err := rw.reconcile(); err != nil {
				return err
			}

			watcher, err := config.NewWatcher(cfg.File, rw.reload, s.logger)
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				watcher.Stop()
				return err
			}

			banner := color.New(color.FgCyan, color.Bold)
			if opts.NoColor {
				banner.DisableColor()
			}
			banner.Fprintf(out, "Watching %s for %s\n", cfg.File, cfg.Scene.Path)
			fmt.Fprintln(out, "Press Ctrl+C to stop")

			<-ctx.Done()

			err = watcher.Stop()
			rw.close()
			if err != nil {
				return fmt.Errorf("error stopping watcher: %w", err)
			}
			return nil
		},
	}

	return cmd
}

// reloader applies reloaded configs to a watched session
type reloader struct {
	ctx     context.Context
	session *session
	opts    *Options
	mu      sync.Mutex
	closed  bool
}

func newReloader(ctx context.Context, s *session, opts *Options) *reloader {
	return &reloader{ctx: ctx, session: s, opts: opts}
}

// reconcile repairs the scene and saves it
func (r *reloader) reconcile() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconcileLocked()
}

func (r *reloader) reconcileLocked() error {
	s := r.session
	log, err := s.manager.Refresh()
	if len(log) > 0 {
		ui.WriteRepairLog(s.out, log, r.opts.NoColor)
	}
	if saveErr := s.save(r.ctx); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	return err
}

// reload takes the manager tables from cfg and reconciles again. The scene
// path is fixed for the lifetime of the watch.
func (r *reloader) reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.session.manager.SetConfig(cfg.ToManager())
	if err := r.reconcileLocked(); err != nil {
		r.session.logger.Error("reconcile after config reload failed", zap.Error(err))
		ui.Message{Level: ui.LevelError, Context: "reconcile failed", Problem: err.Error(), NoColor: r.opts.NoColor}.Write(r.session.out)
	}
}

// close waits for a running reload and ignores later ones
func (r *reloader) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

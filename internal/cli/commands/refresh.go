package commands

import (
	"fmt"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/spf13/cobra"
)

func newRefreshCommand(opts *Options) *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile the scene's metanodes and save it",
		Long: `Relink stale type tags, delete duplicate singletons, orphaned and
deprecated metanodes and migrate out-of-date ones, as happens when the scene
is opened. The planned repairs are listed and confirmed before anything
changes unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := openSession(ctx, opts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			findings := s.manager.Gather()
			ui.WriteFindings(out, findings, s.nodeName, opts.NoColor)
			if findings.Empty() || dryRun {
				return nil
			}

			if !yes {
				ok, err := opts.confirm(fmt.Sprintf("Repair %d metanodes in %s?", findings.Total(), s.cfg.Scene.Path))
				if err != nil {
					return err
				}
				if !ok {
					return ErrAborted
				}
			}

			log, repairErr := s.manager.Repair()
			ui.WriteRepairLog(out, log, opts.NoColor)
			if err := s.save(ctx); err != nil {
				return err
			}
			return repairErr
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "repair without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the planned repairs")

	return cmd
}

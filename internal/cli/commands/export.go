package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/conduit-lang/metanode/internal/meta/codec"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/spf13/cobra"
)

func newExportCommand(opts *Options) *cobra.Command {
	var (
		format string
		output string
		stash  bool
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export [node...]",
		Short: "Serialize metanodes to JSON or YAML",
		Long: `Serialize the named metanodes, or every metanode in the scene, to a
record document. --stash also puts each record in the configured record
store keyed by node name, so another scene can import it with
'metanode import --from-stash'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			s, err := openSession(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			nodes := s.manager.All()
			if len(args) > 0 {
				nodes = make([]*metanode.Node, 0, len(args))
				for _, name := range args {
					n, err := s.lookup(name)
					if err != nil {
						return err
					}
					nodes = append(nodes, n)
				}
			}

			records := make([]*codec.Record, 0, len(nodes))
			for _, n := range nodes {
				rec, err := codec.Serialize(n)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}

			if stash {
				store, err := openRecords(ctx, s)
				if err != nil {
					return err
				}
				defer closeRecords(store)
				for _, rec := range records {
					if err := codec.Stash(ctx, store, rec, ttl); err != nil {
						return err
					}
				}
				ui.WriteSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Stashed %d records", len(records)), opts.NoColor)
			}

			data, err := codec.Encode(f, records...)
			if err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				data = append(data, '\n')
			}
			if output == "" {
				_, err = out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			ui.WriteSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Wrote %d records to %s", len(records), output), opts.NoColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "record format: json or yaml")
	cmd.Flags().StringVarP(&output, "out", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&stash, "stash", false, "also put the records in the record store")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "record store TTL, zero uses records.ttl")

	return cmd
}

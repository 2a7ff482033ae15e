package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/conduit-lang/metanode/internal/meta/codec"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newImportCommand(opts *Options) *cobra.Command {
	var (
		format    string
		fromStash []string
		target    string
		verify    bool
		keepName  bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Restore metanodes from a record document",
		Long: `Restore metanode records into the scene and save it. Records come from a
JSON or YAML file ("-" reads stdin) or, with --from-stash, from the record
store by node name. Each record creates a new node unless --target names an
existing node to restore onto. Links to nodes the scene does not have are
reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if (len(args) == 1) == (len(fromStash) > 0) {
				return errors.New("give either a file or --from-stash")
			}

			s, err := openSession(ctx, opts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			var records []*codec.Record
			if len(args) == 1 {
				records, err = readRecords(cmd.InOrStdin(), args[0], format)
			} else {
				records, err = fetchRecords(cmd, s, fromStash)
			}
			if err != nil {
				return err
			}

			targetID := uuid.Nil
			if target != "" {
				if len(records) != 1 {
					return fmt.Errorf("--target needs exactly one record, got %d", len(records))
				}
				id, ok := s.graph.Lookup(target)
				if !ok {
					return s.nodeNotFound(target)
				}
				targetID = id
			}

			options := codec.Options{Verify: verify, KeepName: keepName}
			for _, rec := range records {
				n, report, err := codec.Deserialize(s.env, rec, targetID, options)
				if errors.Is(err, codec.ErrUnregisteredType) {
					ui.TypeNotFound(rec.Type, s.env.Registry.List(), opts.NoColor).Write(out)
				}
				if err != nil {
					return err
				}
				ui.WriteSuccess(out, fmt.Sprintf("Imported %s as %s", rec.Name, n), opts.NoColor)
				ui.WriteCodecReport(out, report, opts.NoColor)
			}

			s.manager.Index()
			return s.save(ctx)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "record format, default from the file extension")
	cmd.Flags().StringSliceVar(&fromStash, "from-stash", nil, "node names to fetch from the record store")
	cmd.Flags().StringVar(&target, "target", "", "existing node to restore the record onto")
	cmd.Flags().BoolVar(&verify, "verify", false, "warn when record versions differ from the registered type")
	cmd.Flags().BoolVar(&keepName, "keep-name", false, "keep the target's name instead of the record's")

	return cmd
}

func readRecords(stdin io.Reader, path, format string) ([]*codec.Record, error) {
	if format == "" {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			format = "yaml"
		}
	}
	f, err := codec.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return codec.Decode(f, data)
}

func fetchRecords(cmd *cobra.Command, s *session, names []string) ([]*codec.Record, error) {
	store, err := openRecords(cmd.Context(), s)
	if err != nil {
		return nil, err
	}
	defer closeRecords(store)

	records := make([]*codec.Record, 0, len(names))
	for _, name := range names {
		rec, err := codec.Fetch(cmd.Context(), store, name)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

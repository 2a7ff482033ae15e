package commands

import (
	"strconv"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newLsCommand(opts *Options) *cobra.Command {
	var (
		typeName  string
		listTypes bool
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the metanodes in the scene",
		Long: `List every tagged node in the scene with its type, recorded versions and
what a refresh would do to it. --types lists the registered types instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listTypes {
				registry, err := newRegistry()
				if err != nil {
					return err
				}
				t := ui.NewTable(out, opts.NoColor, "TYPE", "VERSION", "LINEAL", "PARENT", "SINGLETON")
				for _, typ := range registry.Types() {
					parent := ""
					if typ.Parent != nil {
						parent = typ.Parent.Name
					}
					t.AddRow(typ.Name, strconv.Itoa(typ.Version), strconv.Itoa(typ.LinealVersion()), parent, yesNo(typ.IsSingleton()))
				}
				t.Render()
				return nil
			}

			s, err := openSession(cmd.Context(), opts, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if typeName != "" {
				if _, ok := s.env.Registry.Resolve(typeName); !ok {
					ui.TypeNotFound(typeName, s.env.Registry.List(), opts.NoColor).Write(out)
					return errUnknownType(typeName)
				}
			}

			status := statusByNode(s.manager.Gather())
			t := ui.NewTable(out, opts.NoColor, "NAME", "TYPE", "TAG", "VERSION", "LINEAL", "STATUS")
			for _, id := range metanode.Tagged(s.graph) {
				tag, err := metanode.TypeTag(s.graph, id)
				if err != nil {
					continue
				}
				if !s.manager.Tracked(id) {
					if typeName == "" {
						t.AddRow(s.nodeName(id), "", tag, "", "", "unregistered")
					}
					continue
				}
				n, err := metanode.FromNode(s.env, id)
				if err != nil {
					continue
				}
				if typeName != "" && n.Type().Name != typeName {
					continue
				}
				st, ok := status[id]
				if !ok {
					st = "ok"
				}
				t.AddRow(n.Name(), n.Type().Name, tag, strconv.Itoa(n.NodeVersion()), strconv.Itoa(n.NodeLineal()), st)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "only list metanodes of this type")
	cmd.Flags().BoolVar(&listTypes, "types", false, "list registered types")

	return cmd
}

// statusByNode labels every node a repair would touch
func statusByNode(f manager.Findings) map[uuid.UUID]string {
	status := make(map[uuid.UUID]string)
	mark := func(label string, ids []uuid.UUID) {
		for _, id := range ids {
			if _, ok := status[id]; !ok {
				status[id] = label
			}
		}
	}
	mark("relink", f.Relink)
	mark("duplicate", f.Singleton)
	mark("orphaned", f.Orphaned)
	mark("stale", f.Update)
	mark("deprecated", f.Deprecated)
	return status
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

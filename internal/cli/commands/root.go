package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// Options are the settings shared by every subcommand
type Options struct {
	ConfigPath string
	ScenePath  string
	NoColor    bool

	// Confirm asks the user a yes/no question; tests replace it
	Confirm func(message string) (bool, error)
}

func surveyConfirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (o *Options) confirm(message string) (bool, error) {
	if o.Confirm == nil {
		return surveyConfirm(message)
	}
	return o.Confirm(message)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&Options{Confirm: surveyConfirm})
}

func newRootCommand(opts *Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "metanode",
		Short: "Inspect and reconcile metanodes in a scene file",
		Long: color.CyanString(`metanode - typed metadata nodes for a scene graph

Loads a scene file, reconciles its metanodes against the registered types
and moves metanode records in and out of the scene.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./metanode.yaml)")
	flags.StringVarP(&opts.ScenePath, "scene", "s", "", "scene file, overrides scene.path")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newLsCommand(opts))
	rootCmd.AddCommand(newRefreshCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newImportCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "metanode version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

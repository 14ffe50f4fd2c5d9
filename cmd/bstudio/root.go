package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/oukeidos/bstudio/internal/cleanup"
	"github.com/oukeidos/bstudio/internal/version"
	"github.com/spf13/cobra"
)

func execute() {
	err := newRootCmd().Execute()
	if cerr := cleanup.RunAll(); cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
		if err == nil {
			err = cerr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. `bstudio <image>` is shorthand for
// `bstudio translate <image>` and accepts the same flags.
func newRootCmd() *cobra.Command {
	var opts translateOptions

	root := &cobra.Command{
		Use:          "bstudio",
		Short:        "Braille transcription studio",
		Version:      version.Info(),
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case len(args) == 0 && cmd.Flags().NFlag() == 0:
			return cmd.Help()
		case len(args) == 0:
			_ = cmd.Usage()
			return fmt.Errorf("an input image is required")
		case slices.ContainsFunc(cmd.Commands(), func(c *cobra.Command) bool { return c.Name() == args[0] }):
			_ = cmd.Usage()
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
		}
		return runTranslate(cmd, args, &opts)
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetUsageTemplate(rootUsageTemplate)
	addTranslateFlags(root, &opts)

	root.AddCommand(
		newTranslateCmd(),
		newBatchCmd(),
		newRetryCmd(),
		newShellCmd(),
		newListCmd(),
		newEnvCmd(),
		newAboutCmd(),
	)

	root.InitDefaultCompletionCmd()
	if completion, _, err := root.Find([]string{"completion"}); err == nil && completion != root {
		completion.Short = "Generate shell completion scripts"
		completion.SetUsageTemplate(subcommandUsageTemplate)
	}
	return root
}

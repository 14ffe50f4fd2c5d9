package main

import (
	"fmt"

	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/language"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capture modes and target languages",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Capture Modes:")
			for _, m := range input.Modes {
				fmt.Fprintf(out, "  %-10s %s%s\n", m.Short(), m.Wire(), defaultMark(m == input.ModeDigitalDots))
			}
			fmt.Fprintln(out, "Target Languages:")
			for _, l := range language.GetSupportedLanguages() {
				fmt.Fprintf(out, "  %-12s [%s] %s%s\n", l.Name, l.Code, l.Script, defaultMark(l.Code == language.Default))
			}
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// defaultMark flags the value used when nothing is chosen. For the target
// language that is the service's own fallback.
func defaultMark(isDefault bool) string {
	if isDefault {
		return " (default)"
	}
	return ""
}

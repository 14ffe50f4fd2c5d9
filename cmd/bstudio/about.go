package main

import (
	"fmt"

	"github.com/oukeidos/bstudio/internal/config"
	"github.com/oukeidos/bstudio/internal/version"
	"github.com/spf13/cobra"
)

const aboutText = `Select an image of Braille, pick how it was captured and, optionally, a
target language. The transcription service segments the dots, decodes the
cells, refines the text and translates it; bstudio shows each stage.`

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show what bstudio does and where it sends images",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bstudio %s: Braille transcription studio\n\n", version.Version)
			fmt.Fprintln(out, aboutText)
			fmt.Fprintf(out, "\nImages are posted to %s/translate", cfg.ServiceURL)
			if cfg.ServiceURL == config.DefaultServiceURL {
				fmt.Fprint(out, " (set BSTUDIO_SERVICE_URL or --service-url to change)")
			}
			fmt.Fprintln(out)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

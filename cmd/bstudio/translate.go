package main

import (
	"errors"
	"fmt"

	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/present"
	"github.com/oukeidos/bstudio/internal/prompt"
	"github.com/oukeidos/bstudio/internal/result"
	"github.com/spf13/cobra"
)

// autoSegmentationPath asks for <image>_segmentation.<ext> next to the input.
const autoSegmentationPath = "auto"

var newConfirmer = prompt.DefaultConfirmer

type translateOptions struct {
	serviceOptions
	json             bool
	segmentationPath string
	yes              bool
	copy             bool
}

func newTranslateCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <image>",
		Short: "Transcribe and translate one Braille image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("an input image is required")
			}
			return runTranslate(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addTranslateFlags(cmd, &opts)
	return cmd
}

func addTranslateFlags(cmd *cobra.Command, opts *translateOptions) {
	addServiceFlags(cmd, &opts.serviceOptions)
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&opts.segmentationPath, "save-segmentation", "", "Save the segmentation image to PATH (without a value: <image>_segmentation.jpg)")
	cmd.Flags().Lookup("save-segmentation").NoOptDefVal = autoSegmentationPath
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite the segmentation image without asking")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Print only the translated text, for piping to a clipboard tool")
}

func runTranslate(cmd *cobra.Command, args []string, opts *translateOptions) error {
	if len(args) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: expected 1 argument but got %d. Did you mean 'bstudio batch'?\n", len(args))
		fmt.Fprintf(cmd.ErrOrStderr(), "  Using image: %s\n", args[0])
	}

	cfg, client, err := newServiceClient(&opts.serviceOptions)
	if err != nil {
		return err
	}

	stage := input.NewStage(newPreviewStore(),
		input.WithMaxImageBytes(cfg.MaxImageBytes),
		input.WithParameters(cfg.Parameters()),
	)
	defer stage.Close()
	if err := stage.SelectImageFile(args[0]); err != nil {
		return err
	}
	ctrl := controller.New(stage, client, controller.Options{Timeout: cfg.Timeout})

	ctx, stop := signalContext()
	defer stop()

	if _, ok := ctrl.Submit(ctx); !ok {
		return fmt.Errorf("submission was not accepted")
	}
	st, err := ctrl.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Translation canceled", "error", err)
			return nil
		}
		return err
	}
	if st.Phase == controller.PhaseFailed {
		if opts.json {
			_ = (present.JSONRenderer{Out: cmd.OutOrStdout()}).Render(st)
		}
		return st.Err
	}

	savedTo := ""
	if opts.segmentationPath != "" {
		savedTo, err = saveSegmentation(st, args[0], opts)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.copy:
		text, ok := ctrl.CopyTranslation()
		if !ok {
			return fmt.Errorf("the service returned no translated text")
		}
		_, err = fmt.Fprintln(out, text)
		return err
	case opts.json:
		doc := present.NewDocument(st)
		doc.Source = args[0]
		if savedTo != "" && doc.Segmentation != nil {
			doc.Segmentation.SavedTo = savedTo
		}
		return present.JSONRenderer{Out: out, Indent: true}.Encode(doc)
	default:
		if err := (present.TextRenderer{Out: out, Styled: styledOutput(out)}).Render(st); err != nil {
			return err
		}
		if savedTo != "" {
			fmt.Fprintf(out, "Segmentation saved to %s\n", savedTo)
		}
		return nil
	}
}

// saveSegmentation writes the visualization of a succeeded state. A missing
// image or a declined overwrite is logged, not fatal.
func saveSegmentation(st controller.State, inputPath string, opts *translateOptions) (string, error) {
	img, ok := st.Result.Segmentation()
	if !ok {
		logger.Warn("Service returned no segmentation image; nothing saved")
		return "", nil
	}
	path := opts.segmentationPath
	if path == autoSegmentationPath {
		path = files.SegmentationPath("", inputPath, segmentationExt(img))
	}
	saved, err := present.SaveSegmentation(path, img, present.SaveOptions{
		Force:   opts.yes,
		Confirm: newConfirmer(),
	})
	if errors.Is(err, present.ErrDeclined) {
		logger.Warn("Segmentation image not saved", "path", path)
		return "", nil
	}
	return saved, err
}

func segmentationExt(img result.Image) string {
	switch img.ContentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

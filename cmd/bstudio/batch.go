package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/batch"
	"github.com/oukeidos/bstudio/internal/config"
	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/present"
	"github.com/oukeidos/bstudio/internal/recovery"
	"github.com/spf13/cobra"
)

type batchOptions struct {
	serviceOptions
	batchOutput
	concurrency   int
	qps           float64
	recoveryDir   string
	noRecoveryLog bool
}

// batchOutput controls how settled items are printed.
type batchOutput struct {
	json            bool
	segmentationDir string
}

func newBatchCmd() *cobra.Command {
	opts := batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <image>...",
		Short: "Transcribe many images with bounded concurrency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addServiceFlags(cmd, &opts.serviceOptions)
	addRunFlags(cmd, &opts.concurrency, &opts.qps, &opts.batchOutput)
	cmd.Flags().StringVar(&opts.recoveryDir, "recovery-dir", "", "Write the recovery log into DIR (default: directory of the first image)")
	cmd.Flags().BoolVar(&opts.noRecoveryLog, "no-recovery-log", false, "Do not write a recovery log for failed images")
	return cmd
}

func addRunFlags(cmd *cobra.Command, concurrency *int, qps *float64, out *batchOutput) {
	cmd.Flags().IntVar(concurrency, "concurrency", 0, "Number of images in flight (1-64, default $BSTUDIO_CONCURRENCY or 4)")
	cmd.Flags().Float64Var(qps, "qps", 0, "Maximum requests per second (default $BSTUDIO_QPS or 2)")
	cmd.Flags().BoolVar(&out.json, "json", false, "Print one JSON object per image (JSON Lines)")
	cmd.Flags().StringVar(&out.segmentationDir, "segmentation-dir", "", "Save segmentation images into DIR (never overwrites)")
}

func runBatch(cmd *cobra.Command, args []string, opts *batchOptions) error {
	cfg, client, err := newServiceClient(&opts.serviceOptions)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(&cfg, opts.concurrency, opts.qps); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	params := cfg.Parameters()
	items, canceled, err := runImages(ctx, cmd.OutOrStdout(), client, cfg, params, args, opts.batchOutput)
	if err != nil {
		return err
	}
	failed := countFailed(items)
	if failed > 0 && !opts.noRecoveryLog {
		dir := opts.recoveryDir
		if dir == "" {
			dir = filepath.Dir(args[0])
		}
		logPath, err := recovery.GenerateRecoveryPath(dir)
		if err != nil {
			return fmt.Errorf("failed to choose recovery log path: %w", err)
		}
		if err := writeRecoveryLog(logPath, params, items, canceled); err != nil {
			logger.Error("Failed to write recovery log", "path", logPath, "error", err)
		} else {
			logger.Warn("Recovery log saved", "path", logPath, "retry", "bstudio retry "+logPath)
		}
	}
	if canceled {
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(items))
	}
	return nil
}

func applyRunOverrides(cfg *config.Config, concurrency int, qps float64) error {
	if concurrency != 0 {
		cfg.Concurrency = concurrency
	}
	if qps != 0 {
		cfg.QPS = qps
	}
	return cfg.Validate()
}

// runImages submits paths and prints each item as it settles. canceled is
// true when the run was interrupted; the items then include the unstarted
// ones with a context error.
func runImages(ctx context.Context, out io.Writer, svc controller.Service, cfg config.Config, params input.Parameters, paths []string, o batchOutput) ([]batch.Item, bool, error) {
	runner := batch.New(svc, batch.Options{
		Concurrency:   cfg.Concurrency,
		QPS:           cfg.QPS,
		Params:        params,
		MaxImageBytes: cfg.MaxImageBytes,
		Timeout:       cfg.Timeout,
		Previews:      newPreviewStore(),
	})

	items, err := runner.Run(ctx, paths, o.emitter(out))
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Batch canceled", "error", err)
			return items, true, nil
		}
		return items, false, err
	}
	return items, false, nil
}

func (o batchOutput) emitter(out io.Writer) func(batch.Item) {
	text := present.TextRenderer{Out: out, Styled: styledOutput(out)}
	jsonl := present.JSONRenderer{Out: out}
	return func(it batch.Item) {
		savedTo := ""
		if it.OK() && o.segmentationDir != "" {
			savedTo = saveBatchSegmentation(it, o.segmentationDir)
		}

		if o.json {
			doc := present.NewDocument(it.State)
			doc.Source = it.Path
			if it.Err != nil {
				doc.Error = &present.ErrorInfo{Message: it.Err.Error()}
			}
			if savedTo != "" && doc.Segmentation != nil {
				doc.Segmentation.SavedTo = savedTo
			}
			if err := jsonl.Encode(doc); err != nil {
				logger.Error("Failed to write result", "path", it.Path, "error", err)
			}
			return
		}
		switch {
		case it.Err != nil:
			fmt.Fprintf(out, "%s: %v\n", it.Path, it.Err)
		case it.State.Phase == controller.PhaseSucceeded:
			fmt.Fprintf(out, "== %s\n", it.Path)
			_ = text.Render(it.State)
		default:
			fmt.Fprintf(out, "%s: %s\n", it.Path, text.StatusLine(it.State))
		}
	}
}

func countFailed(items []batch.Item) int {
	failed := 0
	for _, it := range items {
		if !it.OK() {
			failed++
		}
	}
	return failed
}

func writeRecoveryLog(logPath string, params input.Parameters, items []batch.Item, canceled bool) error {
	log := recovery.NewSessionLog(params, len(items))
	if canceled {
		log.StatusReason = "canceled"
	}
	for _, it := range items {
		if it.OK() {
			continue
		}
		kind, message := failureOf(it)
		if err := log.AddFailure(logPath, it.Path, kind, message); err != nil {
			return err
		}
	}
	return recovery.SaveSessionLog(logPath, log)
}

func failureOf(it batch.Item) (string, string) {
	err := it.Err
	if err == nil {
		err = it.State.Err
	}
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", err.Error()
	}
	if kind, ok := apperrors.KindOf(err); ok {
		return string(kind), apperrors.PublicMessage(err)
	}
	return "error", err.Error()
}

func saveBatchSegmentation(it batch.Item, dir string) string {
	img, ok := it.State.Result.Segmentation()
	if !ok {
		return ""
	}
	path := files.SegmentationPath(dir, it.Path, segmentationExt(img))
	saved, err := present.SaveSegmentation(path, img, present.SaveOptions{Unique: true})
	if err != nil {
		logger.Warn("Segmentation image not saved", "path", filepath.Base(path), "error", err)
		return ""
	}
	return saved
}

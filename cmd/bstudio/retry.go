package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/recovery"
	"github.com/spf13/cobra"
)

type retryOptions struct {
	serviceOptions
	batchOutput
	concurrency int
	qps         float64
}

func newRetryCmd() *cobra.Command {
	opts := retryOptions{}
	cmd := &cobra.Command{
		Use:   "retry <recovery_log.json>",
		Short: "Resubmit the images a batch run could not transcribe",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("recovery_log.json is required")
			}
			return runRetry(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addServiceFlags(cmd, &opts.serviceOptions)
	addRunFlags(cmd, &opts.concurrency, &opts.qps, &opts.batchOutput)
	// The log carries the parameters the images were first sent with.
	_ = cmd.Flags().MarkHidden("mode")
	_ = cmd.Flags().MarkHidden("lang")
	return cmd
}

func runRetry(cmd *cobra.Command, args []string, opts *retryOptions) error {
	logPath := args[0]
	opts.mode, opts.lang = "", ""

	cfg, client, err := newServiceClient(&opts.serviceOptions)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(&cfg, opts.concurrency, opts.qps); err != nil {
		return err
	}

	session, err := recovery.LoadSessionLog(logPath)
	if err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid recovery log %s: %w", logPath, err)
	}
	params, err := session.Parameters()
	if err != nil {
		return err
	}

	paths := make([]string, len(session.Failed))
	for i, entry := range session.Failed {
		paths[i] = recovery.ResolvePath(logPath, entry.Path)
		if entry.Hash == "" {
			continue
		}
		if hash, err := recovery.HashFileHex(paths[i]); err == nil && hash != entry.Hash {
			logger.Warn("Image changed since the failed attempt", "path", paths[i])
		}
	}
	logger.Info("Retrying failed images", "count", len(paths), "mode", params.Mode.Short(), "target_lang", params.TargetLanguage)

	ctx, stop := signalContext()
	defer stop()

	items, canceled, err := runImages(ctx, cmd.OutOrStdout(), client, cfg, params, paths, opts.batchOutput)
	if err != nil {
		return err
	}

	failed := countFailed(items)
	if failed == 0 {
		if err := os.Remove(logPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove recovery log", "path", logPath, "error", err)
		} else {
			logger.Info("All images recovered; recovery log removed", "path", logPath)
		}
		return nil
	}
	if err := writeRecoveryLog(logPath, params, items, canceled); err != nil {
		return fmt.Errorf("failed to update recovery log: %w", err)
	}
	logger.Warn("Recovery log updated", "path", logPath, "remaining", failed)
	if canceled {
		return nil
	}
	return fmt.Errorf("%d of %d images still failed", failed, len(items))
}

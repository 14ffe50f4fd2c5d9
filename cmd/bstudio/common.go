package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oukeidos/bstudio/internal/auth"
	"github.com/oukeidos/bstudio/internal/cleanup"
	"github.com/oukeidos/bstudio/internal/config"
	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/language"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	isTerminal     = term.IsTerminal
	getToken       = auth.GetToken
	getEnvToken    = auth.GetEnvToken
	hasToken       = auth.HasToken
	promptForToken = func(prompt string) (string, error) { return auth.PromptForToken(os.Stderr, prompt) }
	loadConfig     = config.Load
)

// serviceOptions are the flags shared by every command that talks to the
// transcription service.
type serviceOptions struct {
	serviceURL  string
	timeout     time.Duration
	mode        string
	lang        string
	allowEnv    bool
	envOnly     bool
	askToken    bool
	debug       bool
	logFilePath string
}

func addServiceFlags(cmd *cobra.Command, opts *serviceOptions) {
	cmd.Flags().StringVar(&opts.serviceURL, "service-url", "", "Transcription service base URL (default $BSTUDIO_SERVICE_URL or "+config.DefaultServiceURL+")")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (default $BSTUDIO_TIMEOUT or 60s)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Capture mode: digital or embossed (default digital)")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Target language code or name (see 'bstudio list')")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading the service token from "+auth.TokenEnvVar)
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only "+auth.TokenEnvVar+" for the service token")
	cmd.Flags().BoolVar(&opts.askToken, "ask-token", false, "Prompt for a service token when none is stored")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.Flags().SetNormalizeFunc(normalizeServiceFlag)
}

// flagAliases maps the names used by the service's own form fields and
// common spellings onto the canonical flag names.
var flagAliases = map[string]string{
	"target-lang": "lang",
	"target_lang": "lang",
	"language":    "lang",
	"url":         "service-url",
	"service_url": "service-url",
}

func normalizeServiceFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// resolveConfig merges environment defaults with explicit flags.
func resolveConfig(opts *serviceOptions) (config.Config, error) {
	cfg := loadConfig()
	if opts.serviceURL != "" {
		cfg.ServiceURL = opts.serviceURL
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
	if opts.mode != "" {
		m, err := input.ParseMode(opts.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	if opts.lang != "" {
		code, err := resolveLanguageCode(opts.lang)
		if err != nil {
			return cfg, err
		}
		cfg.TargetLanguage = code
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// resolveLanguageCode accepts a code, a display name, or "none".
func resolveLanguageCode(in string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(in), "none") {
		return "", nil
	}
	return language.Resolve(in)
}

// setupLogging configures the global logger. The log file, if any, is
// closed by the cleanup hooks.
func setupLogging(debug bool, level, logFilePath string) error {
	logLevel, err := logger.ParseLevel(level)
	if err != nil {
		logLevel = logger.LevelWarn
	}
	if debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if logFilePath != "" {
		if err := files.RejectSymlinkPath(logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register("log file", f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)
	return nil
}

// resolveToken finds the optional service token. Unlike an API key it may
// legitimately be absent: a local service needs none.
func resolveToken(allowEnv, envOnly, ask bool) (string, auth.Source, error) {
	if envOnly {
		if token, ok := getEnvToken(); ok {
			return token, auth.SourceEnv, nil
		}
		return "", auth.SourceNone, fmt.Errorf("env-only set but %s is not set", auth.TokenEnvVar)
	}

	if token, source := getToken(allowEnv); token != "" {
		return token, source, nil
	}

	if ask {
		if !isTerminal(int(os.Stdin.Fd())) {
			return "", auth.SourceNone, fmt.Errorf("cannot ask for a token: stdin is not a terminal")
		}
		token, err := promptForToken("Service token (press Enter to skip): ")
		if err != nil {
			return "", auth.SourceNone, fmt.Errorf("error reading token: %w", err)
		}
		if token = strings.TrimSpace(token); token != "" {
			return token, auth.SourcePrompt, nil
		}
	}
	return "", auth.SourceNone, nil
}

// newServiceClient prepares logging, config, token and client for a
// command run.
func newServiceClient(opts *serviceOptions) (config.Config, *service.Client, error) {
	cfg := loadConfig()
	if err := setupLogging(opts.debug, cfg.LogLevel, opts.logFilePath); err != nil {
		return cfg, nil, err
	}
	cfg, err := resolveConfig(opts)
	if err != nil {
		return cfg, nil, err
	}
	token, source, err := resolveToken(opts.allowEnv, opts.envOnly, opts.askToken)
	if err != nil {
		return cfg, nil, err
	}
	if source != auth.SourceNone {
		logger.Info("Using service token", "source", source)
	}
	client, err := service.NewClient(cfg.ServiceURL, service.WithToken(token))
	if err != nil {
		return cfg, nil, err
	}
	logger.Debug("Service endpoint", "url", client.Endpoint(), "timeout", cfg.Timeout)
	return cfg, client, nil
}

// styledOutput reports whether w is a terminal worth styling.
func styledOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

// newPreviewStore returns a temp preview store removed on exit.
func newPreviewStore() *input.TempPreviewStore {
	store := input.NewTempPreviewStore()
	cleanup.Register("previews", store.Close)
	return store
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

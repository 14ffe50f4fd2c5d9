package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/files"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/language"
	"github.com/oukeidos/bstudio/internal/present"
	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	opts := serviceOptions{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session: open images, submit, inspect results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, &opts)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addServiceFlags(cmd, &opts)
	return cmd
}

func runShell(cmd *cobra.Command, opts *serviceOptions) error {
	cfg, client, err := newServiceClient(opts)
	if err != nil {
		return err
	}
	stage := input.NewStage(newPreviewStore(),
		input.WithMaxImageBytes(cfg.MaxImageBytes),
		input.WithParameters(cfg.Parameters()),
	)
	defer stage.Close()
	ctrl := controller.New(stage, client, controller.Options{Timeout: cfg.Timeout})

	ctx, stop := signalContext()
	defer stop()

	sh := newShell(cmd.InOrStdin(), cmd.OutOrStdout(), stage, ctrl)
	sh.interactive = isTerminal(int(os.Stdin.Fd()))
	return sh.run(ctx)
}

// shell is a line-oriented skin over one stage and one controller.
type shell struct {
	in          io.Reader
	out         io.Writer
	outMu       sync.Mutex
	stage       *input.Stage
	ctrl        *controller.Controller
	text        present.TextRenderer
	interactive bool
}

func newShell(in io.Reader, out io.Writer, stage *input.Stage, ctrl *controller.Controller) *shell {
	sh := &shell{in: in, out: out, stage: stage, ctrl: ctrl, text: present.TextRenderer{Out: out, Styled: styledOutput(out)}}
	ctrl.Subscribe(func(st controller.State) {
		switch {
		case st.Phase == controller.PhaseFailed && apperrors.Retryable(st.Err):
			sh.printf("[%s] (submit to retry)\n", sh.text.StatusLine(st))
		case st.Phase.Settled() && st.Phase != controller.PhaseIdle:
			sh.printf("[%s]\n", sh.text.StatusLine(st))
		}
	})
	return sh
}

func (sh *shell) printf(format string, args ...any) {
	sh.outMu.Lock()
	defer sh.outMu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) run(ctx context.Context) error {
	scanner := bufio.NewScanner(sh.in)
	if sh.interactive {
		sh.printf("bstudio shell. Type 'help' for commands.\n")
	}
	for {
		if sh.interactive {
			sh.printf("bstudio> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if quit := sh.dispatch(ctx, fields[0], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(scanner.Text()), fields[0]))); quit {
			return nil
		}
	}
}

// dispatch runs one command. arg is the rest of the line, so paths may
// contain spaces.
func (sh *shell) dispatch(ctx context.Context, name, arg string) bool {
	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		sh.printf("%s", shellHelp)
	case "open":
		if arg == "" {
			sh.printf("usage: open <path>\n")
			return false
		}
		if err := sh.stage.SelectImageFile(arg); err != nil {
			sh.printf("Error: %v\n", err)
			return false
		}
		img, _ := sh.stage.Current()
		sh.printf("Selected %s (%s, %d bytes)\n", img.Name, img.ContentType, len(img.Data))
	case "clear":
		sh.stage.ClearImage()
		sh.printf("Image cleared\n")
	case "mode":
		m, err := input.ParseMode(arg)
		if err != nil {
			sh.printf("Error: %v\n", err)
			return false
		}
		sh.stage.SetMode(m)
		sh.printf("Mode: %s\n", m.Wire())
	case "lang":
		code, err := resolveLanguageCode(arg)
		if err != nil || !sh.stage.SetTargetLanguage(code) {
			sh.printf("Unsupported language %q (see 'bstudio list')\n", arg)
			return false
		}
		sh.printf("Target language: %s\n", displayLanguage(code))
	case "params":
		p := sh.stage.Params()
		sh.printf("Mode: %s\nTarget language: %s\n", p.Mode.Wire(), displayLanguage(p.TargetLanguage))
	case "submit":
		seq, ok := sh.ctrl.Submit(ctx)
		switch {
		case ok:
			sh.printf("Submitted #%d\n", seq)
		case sh.ctrl.State().Phase == controller.PhaseSubmitting:
			sh.printf("Submission #%d is still in flight\n", sh.ctrl.State().Seq)
		default:
			sh.printf("No image selected\n")
		}
	case "status":
		sh.printf("%s\n", sh.text.StatusLine(sh.ctrl.State()))
	case "wait":
		if _, err := sh.ctrl.Await(ctx); err != nil {
			sh.printf("Error: %v\n", err)
		}
	case "show":
		sh.outMu.Lock()
		_ = sh.text.Render(sh.ctrl.State())
		sh.outMu.Unlock()
	case "copy":
		text, ok := sh.ctrl.CopyTranslation()
		if !ok {
			sh.printf("No translated text available\n")
			return false
		}
		sh.printf("%s\n", text)
	case "save":
		sh.save(arg)
	default:
		sh.printf("Unknown command %q. Type 'help' for commands.\n", name)
	}
	return false
}

func (sh *shell) save(path string) {
	st := sh.ctrl.State()
	if st.Phase != controller.PhaseSucceeded {
		sh.printf("No result to save\n")
		return
	}
	img, ok := st.Result.Segmentation()
	if !ok {
		sh.printf("The service returned no segmentation image\n")
		return
	}
	if path == "" {
		name := "image"
		if cur, ok := sh.stage.Current(); ok {
			name = cur.Name
		}
		path = files.SegmentationPath(".", name, segmentationExt(img))
	}
	saved, err := present.SaveSegmentation(path, img, present.SaveOptions{Unique: true})
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("Saved %s\n", saved)
}

func displayLanguage(code string) string {
	if code == "" {
		return "none"
	}
	if lang, ok := language.GetLanguage(code); ok {
		return fmt.Sprintf("%s [%s]", lang.Name, lang.Code)
	}
	return code
}

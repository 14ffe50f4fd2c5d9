package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer asks yes/no questions on a terminal.
type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Confirm prints question and reads one answer line. Only "y" and "yes"
// count as agreement.
func (c Confirmer) Confirm(question string) (bool, error) {
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, fmt.Errorf("non-interactive stdin: cannot ask %q", question)
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s (y/n): ", question)
	}
	reader := bufio.NewReader(c.In)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ConfirmOverwrite asks before replacing an existing file at path.
func (c Confirmer) ConfirmOverwrite(path string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, fmt.Errorf("non-interactive stdin: use -y to overwrite %s", path)
	}
	return c.Confirm(fmt.Sprintf("Segmentation image %s already exists. Overwrite?", path))
}

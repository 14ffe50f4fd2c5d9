// Package present renders controller state for people and for machines.
// Renderers only read State; none of them drive the controller.
package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/result"
	"github.com/rivo/uniseg"
)

// DefaultStatusWidth is the grapheme budget of a status line.
const DefaultStatusWidth = 72

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	absentStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	phaseStyles = map[controller.Phase]lipgloss.Style{
		controller.PhaseSubmitting: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		controller.PhaseSucceeded:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		controller.PhaseFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

type TextRenderer struct {
	Out io.Writer
	// Width caps the status line in grapheme clusters. Zero means
	// DefaultStatusWidth.
	Width int
	// Styled adds terminal styling to labels, the status and placeholders.
	// lipgloss still drops colours the terminal cannot show.
	Styled bool
}

// Render writes the full view of st.
func (r TextRenderer) Render(st controller.State) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, "Status:"), r.style(phaseStyles[st.Phase], r.StatusLine(st)))
	switch st.Phase {
	case controller.PhaseSucceeded:
		raw, rawOK := st.Result.Raw()
		refined, refinedOK := st.Result.Refined()
		translated, translatedOK := st.Result.Translated()
		r.writeField(&b, "Raw transcription", raw, rawOK)
		r.writeField(&b, "Refined transcription", refined, refinedOK)
		r.writeField(&b, "Translation", translated, translatedOK)
		img, ok := st.Result.Segmentation()
		r.writeField(&b, "Segmentation", fmt.Sprintf("%s, %d bytes", img.ContentType, len(img.Data)), ok)
	case controller.PhaseFailed:
		fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, "Error:"), st.Failure())
	}
	_, err := io.WriteString(r.Out, b.String())
	return err
}

func (r TextRenderer) style(s lipgloss.Style, text string) string {
	if !r.Styled {
		return text
	}
	return s.Render(text)
}

// StatusLine summarises st on a single line.
func (r TextRenderer) StatusLine(st controller.State) string {
	width := r.Width
	if width <= 0 {
		width = DefaultStatusWidth
	}
	var line string
	switch st.Phase {
	case controller.PhaseIdle:
		line = "idle"
	case controller.PhaseSubmitting:
		line = fmt.Sprintf("submitting #%d", st.Seq)
	case controller.PhaseFailed:
		line = fmt.Sprintf("failed #%d: %s", st.Seq, st.Failure())
	case controller.PhaseSucceeded:
		line = fmt.Sprintf("succeeded #%d", st.Seq)
		if text, ok := headline(st.Result); ok && text != "" {
			line += ": " + text
		}
	default:
		line = st.Phase.String()
	}
	return Truncate(line, width)
}

// headline picks the most processed text the service returned.
func headline(t *result.Translation) (string, bool) {
	if s, ok := t.Translated(); ok {
		return s, true
	}
	if s, ok := t.Refined(); ok {
		return s, true
	}
	return t.Raw()
}

func (r TextRenderer) writeField(b *strings.Builder, label, value string, ok bool) {
	fmt.Fprintf(b, "%s\n", r.style(labelStyle, label+":"))
	switch {
	case !ok:
		fmt.Fprintf(b, "  %s\n", r.style(absentStyle, result.Placeholder))
	case value == "":
		fmt.Fprintf(b, "  %s\n", r.style(absentStyle, "(empty)"))
	default:
		for _, line := range strings.Split(value, "\n") {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
}

// Truncate shortens s to at most limit grapheme clusters, ending with an
// ellipsis when anything was cut. Line breaks become spaces.
func Truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < limit-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("…")
	return b.String()
}

package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"brutalist/pkg/parsers"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	groupStyle    = lipgloss.NewStyle().Bold(true)
	sourceStyle   = lipgloss.NewStyle().Faint(true)
)

// printer writes script output and result summaries. Styling is only
// applied when the destination is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

// Line prints one line of script output as it arrived.
func (p *printer) Line(line string, ev parsers.Event) {
	switch ev.Kind {
	case parsers.EventProgress:
		if ev.Total > 0 {
			line = fmt.Sprintf("[%3d%%] %s", ev.Percent(), ev.Message)
		}
		line = p.render(progressStyle, line)
	case parsers.EventError:
		line = p.render(errorStyle, line)
	case parsers.EventResult:
		line = p.render(resultStyle, line)
	}
	fmt.Fprintln(p.w, line)
}

// Output prints the full output of a blocking run.
func (p *printer) Output(output string) {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.Line(line, parsers.ParseLine(line))
	}
}

func (p *printer) Failure(err error) {
	fmt.Fprintln(p.w, p.render(errorStyle, "Error: "+err.Error()))
}

func (p *printer) Summary(result *parsers.AnalysisResult) {
	period := "today"
	if result.IsLastWeek {
		period = "last week"
	}
	topic := result.Topic
	if topic == "" {
		topic = "all"
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.render(titleStyle, fmt.Sprintf("%s, %s, %s: %d topic groups, %d headlines",
		result.Date, topic, period, result.TotalGroups, result.TotalHeadlines)))

	for _, group := range result.CommonTopics {
		fmt.Fprintln(p.w, p.render(groupStyle, fmt.Sprintf("\n%s (%d)", group.TopicName, group.GroupSize())))
		for _, h := range group.Headlines {
			fmt.Fprintf(p.w, "  - %s %s\n", h.Title, p.render(sourceStyle, "["+h.Source+"]"))
		}
	}
}

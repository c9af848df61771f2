// Package reporter renders validation results of the offline validate
// command.
//
// The text format prints a severity header and the message for each
// violation, then the surrounding lines with the affected ones marked ">>>".
package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
)

// FileResult holds the violations found in one file.
type FileResult struct {
	File       string
	Violations []validation.Violation
}

// Options controls text rendering.
type Options struct {
	// Color enables ANSI styling and syntax highlighting.
	Color bool
}

type palette struct {
	severity map[settings.Severity]lipgloss.Style
	location lipgloss.Style
	muted    lipgloss.Style
	marker   lipgloss.Style
	bold     lipgloss.Style
}

func newPalette(w io.Writer, color bool) palette {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return palette{
		severity: map[settings.Severity]lipgloss.Style{
			settings.SeverityError:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			settings.SeverityWarning: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
			settings.SeverityInfo:    r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
			settings.SeverityHint:    r.NewStyle().Foreground(lipgloss.Color("8")),
		},
		location: r.NewStyle().Foreground(lipgloss.Color("#A78BFA")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		marker:   r.NewStyle().Foreground(lipgloss.Color("9")),
		bold:     r.NewStyle().Bold(true),
	}
}

// PrintText writes violations with source snippets followed by a summary
// line.
//
// Example output:
//
//	ERROR: value
//	Type mismatch: int expected
//
//	application.properties:2
//	--------------------
//	   1 |     quarkus.http.host=0.0.0.0
//	   2 | >>> quarkus.http.port=abc
//	--------------------
func PrintText(w io.Writer, results []FileResult, sources map[string][]byte, opts Options) error {
	p := newPalette(w, opts.Color)
	highlight := highlighter(opts.Color)

	sorted := make([]FileResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })

	counts := map[settings.Severity]int{}
	files := 0
	for _, res := range sorted {
		if len(res.Violations) > 0 {
			files++
		}
		var lines []string
		if src, ok := sources[res.File]; ok {
			lines = splitLines(string(src))
		}
		for _, v := range res.Violations {
			counts[v.Severity]++
			if err := printViolation(w, p, highlight, res.File, v, lines); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%s\n", p.bold.Render(summary(counts, files)))
	return err
}

func printViolation(w io.Writer, p palette, highlight func(string) string, file string, v validation.Violation, lines []string) error {
	label := strings.ToUpper(string(v.Severity))
	if style, ok := p.severity[v.Severity]; ok {
		label = style.Render(label)
	}
	if _, err := fmt.Fprintf(w, "\n%s: %s\n%s\n", label, p.muted.Render(v.Code), v.Message); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return printSource(w, p, highlight, file, v, lines)
}

// printSource renders the lines around v with the affected lines marked.
// Lines are 0-based in v and 1-based in the output.
func printSource(w io.Writer, p palette, highlight func(string) string, file string, v validation.Violation, lines []string) error {
	start := v.Range.Start.Line + 1
	end := v.Range.End.Line + 1
	if end < start {
		end = start
	}
	// A range ending at column 0 does not touch its last line.
	if end > start && v.Range.End.Character == 0 {
		end--
	}
	if start < 1 || start > len(lines) {
		return nil
	}
	end = min(end, len(lines))
	first, last := start, end

	pad := 2
	if end == start {
		pad = 4
	}
	for n := 0; n < pad; {
		if start > 1 {
			start--
			n++
		}
		if end < len(lines) {
			end++
			n++
		}
		n++
	}

	rule := p.muted.Render("--------------------")
	if _, err := fmt.Fprintf(w, "\n%s\n%s\n", p.location.Render(fmt.Sprintf("%s:%d", file, first)), rule); err != nil {
		return err
	}
	for i := start; i <= end; i++ {
		pfx := "   "
		if i >= first && i <= last {
			pfx = p.marker.Render(">>>")
		}
		if _, err := fmt.Fprintf(w, " %s | %s %s\n", p.muted.Render(fmt.Sprintf("%3d", i)), pfx, highlight(lines[i-1])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, rule)
	return err
}

func summary(counts map[settings.Severity]int, files int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return "no problems found"
	}
	var parts []string
	for _, sev := range []settings.Severity{settings.SeverityError, settings.SeverityWarning, settings.SeverityInfo, settings.SeverityHint} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, plural(n, string(sev)))
		}
	}
	return fmt.Sprintf("%s in %s", strings.Join(parts, ", "), plural(files, "file"))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// highlighter returns a function coloring one properties line, or the
// identity when color is off.
func highlighter(color bool) func(string) string {
	identity := func(s string) string { return s }
	if !color {
		return identity
	}
	lexer := lexers.Get("properties")
	if lexer == nil {
		return identity
	}
	lexer = chroma.Coalesce(lexer)
	formatter := formatters.Get("terminal256")
	style := styles.Get("monokai")
	return func(line string) string {
		it, err := lexer.Tokenise(nil, line)
		if err != nil {
			return line
		}
		var b strings.Builder
		if err := formatter.Format(&b, style, it); err != nil {
			return line
		}
		return strings.TrimRight(b.String(), "\n")
	}
}

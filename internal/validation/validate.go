package validation

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/settings"
)

// Source is reported as the diagnostic source.
const Source = "quarkus"

// Validate runs rules (DefaultRules when nil) against in. Rules configured
// with severity none are skipped, and violations about excluded property
// names are dropped. The result is sorted by position.
func Validate(in Input, rules []Rule) []Violation {
	if !in.Settings.Enabled || in.Model == nil {
		return nil
	}
	if rules == nil {
		rules = DefaultRules()
	}

	var out []Violation
	for _, rule := range rules {
		cfg := rule.Config(in.Settings)
		if _, ok := cfg.Severity.Protocol(); !ok {
			continue
		}
		for _, v := range rule.Check(in) {
			if excluded(cfg.Excluded, v.Property) {
				continue
			}
			v.Severity = cfg.Severity
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Range.Start, out[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return out
}

func excluded(patterns []string, name string) bool {
	if name == "" {
		return false
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Diagnostics converts violations to LSP diagnostics. The result is never
// nil so that it serializes as an empty array.
func Diagnostics(vs []Violation) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(vs))
	for _, v := range vs {
		sev, ok := v.Severity.Protocol()
		if !ok {
			sev = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: clampUint32(v.Range.Start.Line), Character: clampUint32(v.Range.Start.Character)},
				End:   protocol.Position{Line: clampUint32(v.Range.End.Line), Character: clampUint32(v.Range.End.Character)},
			},
			Severity: sev,
			Code:     v.Code,
			Source:   Source,
			Message:  v.Message,
		})
	}
	return out
}

// HasErrors reports whether any violation has error severity.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == settings.SeverityError {
			return true
		}
	}
	return false
}

func clampUint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	if v > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}

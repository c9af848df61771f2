package reporter

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/tinovyatkin/propls/internal/validation"
)

// jsonViolation is the machine-readable form of a violation. Lines and
// columns are 1-based.
type jsonViolation struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
	Code      string `json:"code"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Property  string `json:"property,omitempty"`
}

type jsonFile struct {
	File       string          `json:"file"`
	Violations []jsonViolation `json:"violations"`
}

type jsonReport struct {
	Files     []jsonFile `json:"files"`
	HasErrors bool       `json:"hasErrors"`
}

// PrintJSON writes results as one indented JSON document.
func PrintJSON(w io.Writer, results []FileResult) error {
	report := jsonReport{Files: make([]jsonFile, 0, len(results))}
	for _, res := range results {
		f := jsonFile{File: res.File, Violations: make([]jsonViolation, 0, len(res.Violations))}
		for _, v := range res.Violations {
			f.Violations = append(f.Violations, jsonViolation{
				Line:      v.Range.Start.Line + 1,
				Column:    v.Range.Start.Character + 1,
				EndLine:   v.Range.End.Line + 1,
				EndColumn: v.Range.End.Character + 1,
				Code:      v.Code,
				Severity:  string(v.Severity),
				Message:   v.Message,
				Property:  v.Property,
			})
		}
		if validation.HasErrors(res.Violations) {
			report.HasErrors = true
		}
		report.Files = append(report.Files, f)
	}
	sort.SliceStable(report.Files, func(i, j int) bool { return report.Files[i].File < report.Files[j].File })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

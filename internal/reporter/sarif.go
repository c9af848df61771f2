package reporter

import (
	"fmt"
	"io"
	"sort"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
	"github.com/tinovyatkin/propls/internal/version"
)

const (
	toolName = "propls"
	toolURI  = "https://github.com/tinovyatkin/propls"
)

// PrintSARIF writes results as a SARIF 2.1.0 log with one run. Every
// default rule is listed in the driver, whether it reported or not.
func PrintSARIF(w io.Writer, results []FileResult) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	run.Tool.Driver.WithVersion(version.RawVersion())
	for _, rule := range validation.DefaultRules() {
		meta := rule.Metadata()
		run.AddRule(meta.Code).WithDescription(meta.Description)
	}

	sorted := append([]FileResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })
	for _, res := range sorted {
		for _, v := range res.Violations {
			region := sarif.NewRegion().
				WithStartLine(v.Range.Start.Line + 1).
				WithStartColumn(v.Range.Start.Character + 1).
				WithEndLine(v.Range.End.Line + 1).
				WithEndColumn(v.Range.End.Character + 1)
			result := run.CreateResultForRule(v.Code).
				WithLevel(sarifLevel(v.Severity)).
				WithMessage(sarif.NewTextMessage(v.Message))
			result.AddLocation(sarif.NewLocationWithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewSimpleArtifactLocation(res.File)).
					WithRegion(region),
			))
		}
	}
	report.AddRun(run)

	if err := report.PrettyWrite(w); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func sarifLevel(s settings.Severity) string {
	switch s {
	case settings.SeverityError:
		return "error"
	case settings.SeverityWarning:
		return "warning"
	case settings.SeverityInfo, settings.SeverityHint:
		return "note"
	default:
		return "none"
	}
}

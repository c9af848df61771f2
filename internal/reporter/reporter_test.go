package reporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
)

const source = "quarkus.http.host=0.0.0.0\nquarkus.http.port=abc\n"

func sampleResults() []FileResult {
	return []FileResult{{
		File: "application.properties",
		Violations: []validation.Violation{{
			Range: properties.Range{
				Start: properties.Position{Line: 1, Character: 18},
				End:   properties.Position{Line: 1, Character: 21},
			},
			Code:     validation.CodeValue,
			Message:  "Type mismatch: int expected",
			Severity: settings.SeverityError,
			Property: "quarkus.http.port",
		}},
	}}
}

func TestPrintText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := PrintText(&buf, sampleResults(), map[string][]byte{"application.properties": []byte(source)}, Options{})
	require.NoError(t, err)

	want := `
ERROR: value
Type mismatch: int expected

application.properties:2
--------------------
   1 |     quarkus.http.host=0.0.0.0
   2 | >>> quarkus.http.port=abc
--------------------

1 error in 1 file
`
	assert.Equal(t, want, buf.String())
}

func TestPrintText_NoSource(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, PrintText(&buf, sampleResults(), nil, Options{}))
	assert.Equal(t, "\nERROR: value\nType mismatch: int expected\n\n1 error in 1 file\n", buf.String())
}

func TestPrintText_Clean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, PrintText(&buf, []FileResult{{File: "application.properties"}}, nil, Options{}))
	assert.Equal(t, "\nno problems found\n", buf.String())
}

func TestPrintText_Color(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := PrintText(&buf, sampleResults(), map[string][]byte{"application.properties": []byte(source)}, Options{Color: true})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Type mismatch: int expected")
}

func TestSummary(t *testing.T) {
	t.Parallel()

	got := summary(map[settings.Severity]int{
		settings.SeverityError:   2,
		settings.SeverityWarning: 1,
	}, 3)
	assert.Equal(t, "2 errors, 1 warning in 3 files", got)
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()

	results := append(sampleResults(), FileResult{File: "application-dev.properties"})
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, results))

	assert.JSONEq(t, `{
		"files": [
			{"file": "application-dev.properties", "violations": []},
			{"file": "application.properties", "violations": [{
				"line": 2, "column": 19, "endLine": 2, "endColumn": 22,
				"code": "value", "severity": "error",
				"message": "Type mismatch: int expected",
				"property": "quarkus.http.port"
			}]}
		],
		"hasErrors": true
	}`, buf.String())
}

func TestPrintSARIF(t *testing.T) {
	t.Parallel()

	results := sampleResults()
	results[0].Violations = append(results[0].Violations, validation.Violation{
		Range: properties.Range{
			Start: properties.Position{Line: 0, Character: 0},
			End:   properties.Position{Line: 0, Character: 17},
		},
		Code:     validation.CodeUnknown,
		Message:  "Unknown property 'quarkus.http.host'",
		Severity: settings.SeverityHint,
	})
	var buf bytes.Buffer
	require.NoError(t, PrintSARIF(&buf, results))
	out := buf.String()
	require.True(t, gjson.Valid(out), out)

	assert.Equal(t, "2.1.0", gjson.Get(out, "version").String())
	assert.Equal(t, "propls", gjson.Get(out, "runs.0.tool.driver.name").String())

	var ruleIDs []string
	for _, id := range gjson.Get(out, "runs.0.tool.driver.rules.#.id").Array() {
		ruleIDs = append(ruleIDs, id.String())
	}
	for _, rule := range validation.DefaultRules() {
		assert.Contains(t, ruleIDs, rule.Metadata().Code)
	}

	first := gjson.Get(out, "runs.0.results.0")
	assert.Equal(t, "value", first.Get("ruleId").String())
	assert.Equal(t, "error", first.Get("level").String())
	assert.Equal(t, "Type mismatch: int expected", first.Get("message.text").String())
	loc := first.Get("locations.0.physicalLocation")
	assert.Equal(t, "application.properties", loc.Get("artifactLocation.uri").String())
	assert.Equal(t, int64(2), loc.Get("region.startLine").Int())
	assert.Equal(t, int64(19), loc.Get("region.startColumn").Int())
	assert.Equal(t, int64(2), loc.Get("region.endLine").Int())
	assert.Equal(t, int64(22), loc.Get("region.endColumn").Int())

	assert.Equal(t, "note", gjson.Get(out, "runs.0.results.1.level").String())
}

func TestPrintSARIF_Clean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, PrintSARIF(&buf, []FileResult{{File: "application.properties"}}))
	results := gjson.Get(buf.String(), "runs.0.results")
	require.True(t, results.IsArray())
	assert.Empty(t, results.Array())
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/settings"
)

func testMetadata() *metadata.ProjectMetadata {
	return metadata.New("file:///project",
		&metadata.Property{
			Name:          "quarkus.http.port",
			Type:          "int",
			DefaultValue:  "8080",
			Docs:          "The HTTP port",
			Phase:         metadata.PhaseRunTime,
			ExtensionName: "quarkus-vertx-http",
			Source:        "io.quarkus.vertx.http.runtime.HttpConfiguration#port",
		},
		&metadata.Property{
			Name: "quarkus.log.level",
			Type: "java.util.logging.Level",
			Enums: []metadata.EnumItem{
				{Name: "INFO", Docs: "Informational messages"},
				{Name: "DEBUG", Docs: "Debug messages"},
			},
		},
		&metadata.Property{Name: "quarkus.ssl.native", Type: "boolean"},
	)
}

func input(t *testing.T, text string, mutate func(*settings.Settings)) Input {
	t.Helper()
	s := settings.Defaults()
	s.Hover.Markdown = true
	if mutate != nil {
		mutate(&s)
	}
	docs, err := NewDocs(1 << 20)
	require.NoError(t, err)
	t.Cleanup(docs.Close)
	return Input{
		URI:      "file:///project/src/main/resources/application.properties",
		Model:    properties.Parse(text),
		Metadata: testMetadata(),
		Settings: &s,
		Docs:     docs,
	}
}

func rangeLen(r *protocol.Range) int {
	return int(r.End.Character) - int(r.Start.Character)
}

func TestHover_ProfileAndKey(t *testing.T) {
	t.Parallel()

	in := input(t, "%dev.quarkus.http.port=8080\n", nil)

	h, err := Hover(in, properties.Position{Line: 0, Character: 2})
	require.NoError(t, err)
	require.NotNil(t, h)
	require.NotNil(t, h.Range)
	assert.Equal(t, protocol.Position{Line: 0, Character: 1}, h.Range.Start)
	assert.Equal(t, 3, rangeLen(h.Range), "profile hover covers only the profile name")
	assert.Equal(t, protocol.Markdown, h.Contents.Kind)
	assert.Equal(t, "**dev**\n\nProfile activated when in development mode (quarkus:dev).", h.Contents.Value)

	h, err = Hover(in, properties.Position{Line: 0, Character: 10})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, h.Range.Start)
	assert.Equal(t, len("%dev.quarkus.http.port"), rangeLen(h.Range), "property hover covers the whole key")
	assert.Equal(t, "**quarkus.http.port**\n\nThe HTTP port\n\n"+
		" * Profile: `dev`\n"+
		" * Type: `int`\n"+
		" * Default: `8080`\n"+
		" * Phase: `runtime`\n"+
		" * Extension: `quarkus-vertx-http`", h.Contents.Value)
}

func TestHover_UnknownProfile(t *testing.T) {
	t.Parallel()

	in := input(t, "%staging.quarkus.http.port=8080\n", nil)
	h, err := Hover(in, properties.Position{Line: 0, Character: 3})
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestHover_States(t *testing.T) {
	t.Parallel()

	text := "# quarkus.http.port\nquarkus.log.level  =  DEBUG\nquarkus.log.level=LOUD\nunknown.key=1\n"
	in := input(t, text, func(s *settings.Settings) { s.Hover.Markdown = false })

	tests := []struct {
		name    string
		pos     properties.Position
		want    string
		wantLen int
	}{
		{"comment", properties.Position{Line: 0, Character: 4}, "", 0},
		{"whitespace before separator", properties.Position{Line: 1, Character: 18}, "", 0},
		{"separator", properties.Position{Line: 1, Character: 19}, "DEBUG\n\nDebug messages", 5},
		{"value", properties.Position{Line: 1, Character: 22}, "DEBUG\n\nDebug messages", 5},
		{"unknown enum value", properties.Position{Line: 2, Character: 19}, "", 0},
		{"unknown key", properties.Position{Line: 3, Character: 2}, "", 0},
		{"blank line", properties.Position{Line: 4, Character: 0}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := Hover(in, tt.pos)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, h)
				return
			}
			require.NotNil(t, h)
			assert.Equal(t, protocol.PlainText, h.Contents.Kind)
			assert.Equal(t, tt.want, h.Contents.Value)
			assert.Equal(t, tt.wantLen, rangeLen(h.Range))
		})
	}

	_, err := Hover(in, properties.Position{Line: 40, Character: 0})
	var locErr *properties.LocationError
	require.ErrorAs(t, err, &locErr)
}

func TestHover_Disabled(t *testing.T) {
	t.Parallel()

	in := input(t, "quarkus.http.port=8080", func(s *settings.Settings) { s.Hover.Enabled = false })
	h, err := Hover(in, properties.Position{Line: 0, Character: 3})
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestDocs_PlainText(t *testing.T) {
	t.Parallel()

	d, err := NewDocs(0)
	require.NoError(t, err)
	got := d.PlainText("The **HTTP** port, see `quarkus.http.host`.\n\nSecond paragraph.")
	assert.Equal(t, "The HTTP port, see quarkus.http.host.\n\nSecond paragraph.", got)

	p := &metadata.Property{Name: "quarkus.datasource.{*}.url", Type: "java.lang.String"}
	assert.Equal(t, "**quarkus.datasource.{\\*}.url**\n\n * Type: `java.lang.String`", d.Property(p, "", true))
	assert.Equal(t, "quarkus.datasource.{*}.url\n\nType: java.lang.String", d.Property(p, "", false))

	var nilDocs *Docs
	assert.Equal(t, "x\n\nplain", nilDocs.Item(metadata.EnumItem{Name: "x", Docs: "*plain*"}, false))
}

func labels(list *protocol.CompletionList) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.Items))
	for _, it := range list.Items {
		out = append(out, it.Label)
	}
	return out
}

func TestCompletion_Keys(t *testing.T) {
	t.Parallel()

	in := input(t, "quarkus.h\n\n%dev.quarkus.l\n", nil)

	list, err := Completion(in, properties.Position{Line: 0, Character: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"quarkus.http.port", "quarkus.log.level", "quarkus.ssl.native"}, labels(list))
	item := list.Items[0]
	require.NotNil(t, item.TextEdit)
	assert.Equal(t, "quarkus.http.port=8080", item.TextEdit.NewText)
	assert.Equal(t, protocol.Range{End: protocol.Position{Line: 0, Character: 9}}, item.TextEdit.Range)

	list, err = Completion(in, properties.Position{Line: 1, Character: 0})
	require.NoError(t, err)
	assert.Len(t, labels(list), 3, "blank line proposes keys")

	list, err = Completion(in, properties.Position{Line: 2, Character: 14})
	require.NoError(t, err)
	require.NotNil(t, list)
	edit := list.Items[0].TextEdit
	assert.Equal(t, protocol.Position{Line: 2, Character: 5}, edit.Range.Start, "profile prefix is kept")
}

func TestCompletion_Snippets(t *testing.T) {
	t.Parallel()

	in := input(t, "quarkus.\n", func(s *settings.Settings) { s.Completion.SnippetSupport = true })
	list, err := Completion(in, properties.Position{Line: 0, Character: 8})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)

	byLabel := map[string]protocol.CompletionItem{}
	for _, it := range list.Items {
		byLabel[it.Label] = it
	}
	assert.Equal(t, "quarkus.http.port=${1:8080}", byLabel["quarkus.http.port"].TextEdit.NewText)
	assert.Equal(t, "quarkus.log.level=${1|INFO,DEBUG|}", byLabel["quarkus.log.level"].TextEdit.NewText)
	assert.Equal(t, "quarkus.ssl.native=${1|false,true|}", byLabel["quarkus.ssl.native"].TextEdit.NewText)
	assert.Equal(t, protocol.InsertTextFormatSnippet, byLabel["quarkus.ssl.native"].InsertTextFormat)

	assert.Equal(t, "quarkus.datasource.${1:key}.url=$2",
		propertySnippet(&metadata.Property{Name: "quarkus.datasource.{*}.url"}))
}

func TestCompletion_ProfilesAndValues(t *testing.T) {
	t.Parallel()

	in := input(t, "%d\nquarkus.log.level=\nquarkus.ssl.native=tr\n# comment\n", nil)

	list, err := Completion(in, properties.Position{Line: 0, Character: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod", "test"}, labels(list))
	assert.Equal(t, protocol.Position{Line: 0, Character: 1}, list.Items[0].TextEdit.Range.Start)

	list, err = Completion(in, properties.Position{Line: 1, Character: 18})
	require.NoError(t, err)
	assert.Equal(t, []string{"INFO", "DEBUG"}, labels(list))

	list, err = Completion(in, properties.Position{Line: 2, Character: 21})
	require.NoError(t, err)
	assert.Equal(t, []string{"false", "true"}, labels(list))
	assert.Equal(t, protocol.Position{Line: 2, Character: 19}, list.Items[0].TextEdit.Range.Start)

	list, err = Completion(in, properties.Position{Line: 3, Character: 3})
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestSymbols(t *testing.T) {
	t.Parallel()

	text := "quarkus.http.port=8080\nquarkus.http.host=localhost\n%dev.quarkus.log.level=DEBUG\n"

	flat := input(t, text, nil)
	flat.Settings.Symbols.Hierarchical = false
	got, err := Symbols(flat)
	require.NoError(t, err)
	infos, ok := got.([]protocol.SymbolInformation)
	require.True(t, ok)
	require.Len(t, infos, 3)
	assert.Equal(t, "%dev.quarkus.log.level", infos[2].Name)
	assert.Equal(t, protocol.DocumentURI(flat.URI), infos[2].Location.URI)

	tree := input(t, text, func(s *settings.Settings) { s.Symbols.Hierarchical = true })
	got, err = Symbols(tree)
	require.NoError(t, err)
	roots, ok := got.([]protocol.DocumentSymbol)
	require.True(t, ok)
	require.Len(t, roots, 2)
	assert.Equal(t, "quarkus", roots[0].Name)
	assert.Equal(t, "%dev", roots[1].Name)

	http := roots[0].Children[0]
	assert.Equal(t, "http", http.Name)
	require.Len(t, http.Children, 2)
	assert.Equal(t, "port", http.Children[0].Name)
	assert.Equal(t, "8080", http.Children[0].Detail)
	assert.Equal(t, protocol.SymbolKindProperty, http.Children[0].Kind)
	assert.Equal(t, uint32(0), http.Range.Start.Line)
	assert.Equal(t, uint32(1), http.Range.End.Line, "parents span their children")
}

func TestDefinition(t *testing.T) {
	t.Parallel()

	in := input(t, "quarkus.http.port=8080\nquarkus.log.level=INFO\n", nil)

	target, err := Definition(in, properties.Position{Line: 0, Character: 4})
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "quarkus.http.port", target.Property.Name)

	loc := protocol.Location{URI: "file:///src/HttpConfiguration.java"}
	locs, ok := target.Result(loc, false).([]protocol.Location)
	require.True(t, ok)
	assert.Len(t, locs, 1)
	links, ok := target.Result(loc, true).([]protocol.LocationLink)
	require.True(t, ok)
	assert.Equal(t, target.Origin, *links[0].OriginSelectionRange)

	target, err = Definition(in, properties.Position{Line: 1, Character: 4})
	require.NoError(t, err)
	assert.Nil(t, target, "properties without a source have no definition")

	target, err = Definition(in, properties.Position{Line: 0, Character: 20})
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	in := input(t, "# c  \na.b   =  1\n\n\n\nc:2\nd\n", nil)
	edits, err := Format(in)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "# c\na.b=1\n\nc=2\nd\n", edits[0].NewText)
	assert.Equal(t, protocol.Position{Line: 7, Character: 0}, edits[0].Range.End)

	spaced := input(t, "a=1\n", func(s *settings.Settings) { s.Formatting.SurroundEqualsWithSpaces = true })
	edits, err = Format(spaced)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "a = 1\n", edits[0].NewText)

	clean := input(t, "a=1\nb=2\n", nil)
	edits, err = Format(clean)
	require.NoError(t, err)
	assert.Nil(t, edits)
}

func TestRangeFormat(t *testing.T) {
	t.Parallel()

	in := input(t, "a  =  1\nb  =  2\nc  =  3\n", nil)
	edits, err := RangeFormat(in, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 3},
	})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "b=2", edits[0].NewText)
	assert.Equal(t, protocol.Position{Line: 1, Character: 0}, edits[0].Range.Start)
	assert.Equal(t, protocol.Position{Line: 1, Character: 7}, edits[0].Range.End)
}

// Package lsptest implements black-box protocol tests for the propls LSP server.
//
// Each test launches propls lsp --stdio as a real subprocess and communicates
// over Content-Length-framed JSON-RPC on stdin/stdout. Coverage data from the
// subprocess is collected via GOCOVERDIR (same mechanism as internal/integration/).
package lsptest

import (
	"testing"
	"time"

	"github.com/gkampitakis/go-snaps/match"
	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func documentURI(name string) protocol.DocumentURI {
	return protocol.DocumentURI("file:///tmp/" + name + "/src/main/resources/application.properties")
}

func position(line, char uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{Position: protocol.Position{Line: line, Character: char}}
}

func TestLSP_Initialize(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	result := ts.initialize(t)

	// Snapshot the full server capabilities; version is dynamic.
	snaps.MatchStandaloneJSON(t, result, match.Any("serverInfo.version"))
}

func TestLSP_ShutdownExit(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	ts.shutdown(t)

	exited := make(chan error, 1)
	go func() { exited <- ts.cmd.Wait() }()

	select {
	case err := <-exited:
		assert.NoError(t, err, "exit after shutdown is a clean stop")
	case <-time.After(5 * time.Second):
		t.Fatal("server process did not exit after shutdown+exit")
	}
}

func TestLSP_DiagnosticsOnDidOpen(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	ts.openDocument(t, documentURI("test-didopen"), "quarkus.http.port=abc\n")

	diag := ts.waitDiagnostics(t)
	snaps.MatchStandaloneJSON(t, diag)
}

func TestLSP_DiagnosticsUpdatedOnDidChange(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-didchange")
	ts.openDocument(t, uri, "quarkus.http.port=8080\nquarkus.unknown=1\n")
	diag1 := ts.waitDiagnostics(t)
	require.Len(t, diag1.Diagnostics, 1)
	assert.Equal(t, "unknown", diag1.Diagnostics[0].Code)

	ts.changeDocument(t, uri, 2, "quarkus.http.port=8080\n")
	diag2 := ts.waitDiagnostics(t)
	assert.Equal(t, uint32(2), diag2.Version)
	assert.Empty(t, diag2.Diagnostics)
}

func TestLSP_DiagnosticsClearedOnClose(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-didclose")
	ts.openDocument(t, uri, "quarkus.http.port=abc\n")
	require.NotEmpty(t, ts.waitDiagnostics(t).Diagnostics)

	ts.closeDocument(t, uri)
	diag := ts.waitDiagnostics(t)
	assert.Equal(t, uri, diag.URI)
	assert.Empty(t, diag.Diagnostics, "expected empty diagnostics after close")
}

func TestLSP_DidSaveKeepsSyncedContent(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-didsave")
	ts.openDocument(t, uri, "quarkus.http.port=8080\n")
	ts.waitDiagnostics(t)

	ts.saveDocument(t, uri, "quarkus.log.level=DEBUG\n")

	var hover *protocol.Hover
	params := &protocol.HoverParams{TextDocumentPositionParams: position(0, 10)}
	params.TextDocument.URI = uri
	ts.call(t, protocol.MethodTextDocumentHover, params, &hover)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "The HTTP port")
}

func TestLSP_Hover(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-hover")
	ts.openDocument(t, uri, "%dev.quarkus.log.level=DEBUG\n")
	ts.waitDiagnostics(t)

	tests := []struct {
		name      string
		char      uint32
		wantStart uint32
		wantEnd   uint32
		want      string
	}{
		{name: "profile", char: 2, wantStart: 1, wantEnd: 4, want: "dev"},
		{name: "key", char: 10, wantStart: 0, wantEnd: 22, want: "The default log level"},
		{name: "value", char: 25, wantStart: 23, wantEnd: 28, want: "Debug messages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hover *protocol.Hover
			params := &protocol.HoverParams{TextDocumentPositionParams: position(0, tt.char)}
			params.TextDocument.URI = uri
			ts.call(t, protocol.MethodTextDocumentHover, params, &hover)
			require.NotNil(t, hover)
			require.NotNil(t, hover.Range)
			assert.Equal(t, tt.wantStart, hover.Range.Start.Character)
			assert.Equal(t, tt.wantEnd, hover.Range.End.Character)
			assert.Contains(t, hover.Contents.Value, tt.want)
		})
	}
}

func TestLSP_Completion(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-completion")
	ts.openDocument(t, uri, "quarkus.http.\n")
	ts.waitDiagnostics(t)

	var list *protocol.CompletionList
	params := &protocol.CompletionParams{TextDocumentPositionParams: position(0, 13)}
	params.TextDocument.URI = uri
	ts.call(t, protocol.MethodTextDocumentCompletion, params, &list)
	require.NotNil(t, list)

	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "quarkus.http.port")
	assert.Contains(t, labels, "quarkus.http.host")
}

func TestLSP_DocumentSymbols(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-symbols")
	ts.openDocument(t, uri, "# server\nquarkus.http.port=8080\nquarkus.log.level=INFO\n")
	ts.waitDiagnostics(t)

	var symbols []protocol.SymbolInformation
	ts.call(t, protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}, &symbols)

	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"quarkus.http.port", "quarkus.log.level"}, names)
}

func TestLSP_Formatting(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-formatting")
	ts.openDocument(t, uri, "quarkus.http.port = 8080\nquarkus.log.level   =INFO\n")
	ts.waitDiagnostics(t)

	var edits []protocol.TextEdit
	ts.call(t, protocol.MethodTextDocumentFormatting, &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}, &edits)
	require.Len(t, edits, 1)
	assert.Equal(t, "quarkus.http.port=8080\nquarkus.log.level=INFO\n", edits[0].NewText)
}

func TestLSP_DefinitionWithoutClientSupport(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	uri := documentURI("test-definition")
	ts.openDocument(t, uri, "quarkus.http.port=8080\n")
	ts.waitDiagnostics(t)

	var result []protocol.Location
	params := &protocol.DefinitionParams{TextDocumentPositionParams: position(0, 3)}
	params.TextDocument.URI = uri
	ts.call(t, protocol.MethodTextDocumentDefinition, params, &result)
	assert.Empty(t, result, "the client cannot resolve Java sources")
}

func TestLSP_MethodNotFound(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t)
	ts.initialize(t)

	_, err := ts.conn.Call(t.Context(), "custom/nonExistentMethod", nil, nil)
	assert.Error(t, err, "unknown method should return an error")
}

func TestLSP_MetadataFromClient(t *testing.T) {
	t.Parallel()
	ts := startTestServer(t, withProjectInfo(t, metadataPath))
	ts.initialize(t)

	uri := documentURI("test-projectinfo")
	ts.openDocument(t, uri, "quarkus.http.port=abc\n")

	diag := ts.waitDiagnostics(t)
	require.Len(t, diag.Diagnostics, 1)
	assert.Equal(t, "Type mismatch: int expected", diag.Diagnostics[0].Message)

	select {
	case got := <-ts.projectInfoURIs:
		assert.Equal(t, string(uri), got)
	default:
		t.Fatal("server did not ask the client for project info")
	}
}

func TestLSP_DefinitionFromClient(t *testing.T) {
	t.Parallel()
	target := protocol.Location{
		URI: "file:///tmp/src/io/quarkus/vertx/http/runtime/HttpConfiguration.java",
		Range: protocol.Range{
			Start: protocol.Position{Line: 41, Character: 15},
			End:   protocol.Position{Line: 41, Character: 19},
		},
	}
	ts := startTestServer(t, withDefinition(target))
	ts.initialize(t)

	uri := documentURI("test-definition-client")
	ts.openDocument(t, uri, "quarkus.http.port=8080\n")
	ts.waitDiagnostics(t)

	var result []protocol.Location
	params := &protocol.DefinitionParams{TextDocumentPositionParams: position(0, 3)}
	params.TextDocument.URI = uri
	ts.call(t, protocol.MethodTextDocumentDefinition, params, &result)
	assert.Equal(t, []protocol.Location{target}, result)
}

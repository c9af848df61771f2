package lspserver

import (
	"context"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// connSink publishes diagnostics to the client as
// textDocument/publishDiagnostics notifications.
type connSink struct {
	conn func() jsonrpc2.Conn
}

func (s connSink) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	conn := s.conn()
	if conn == nil {
		return errNoConnection
	}
	if params.Diagnostics == nil {
		params.Diagnostics = []protocol.Diagnostic{}
	}
	return conn.Notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, params)
}

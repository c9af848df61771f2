// Package lspserver implements a Language Server Protocol server for
// Quarkus application.properties files.
//
// The server provides hover, completion, document symbols, definition,
// formatting and diagnostics. Feature requests and validations run against
// project metadata fetched once per project through a single-flight cache.
//
// Transport: stdio only (--stdio).
// Protocol: LSP 3.16 types via go.lsp.dev/protocol, JSON-RPC via go.lsp.dev/jsonrpc2.
package lspserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/services"
	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
	"github.com/tinovyatkin/propls/internal/version"
)

const (
	serverName = "propls"

	// LanguageID is the language identifier of Quarkus properties files.
	LanguageID = "quarkus-properties"

	tracerName = "github.com/tinovyatkin/propls/internal/lspserver"
)

var (
	errNoConnection        = errors.New("no client connection")
	errExitWithoutShutdown = errors.New("exit received before shutdown")
)

// Options configures a Server. The zero value is usable.
type Options struct {
	// Provider overrides the metadata provider. By default metadata is
	// requested from the client, falling back to MetadataFile when set.
	Provider metadata.Provider

	// MetadataFile is a metadata JSON file used when the client has none.
	MetadataFile string

	// Retries is the number of attempts per metadata fetch.
	Retries uint

	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration

	// DocCacheBytes bounds the rendered documentation cache.
	DocCacheBytes int64

	// ValidationWorkers bounds concurrent validations on full revalidation.
	ValidationWorkers int

	Logger logrus.FieldLogger
	Tracer trace.Tracer
}

// Server is the propls LSP server.
type Server struct {
	mu        sync.RWMutex
	conn      jsonrpc2.Conn
	canceller func(jsonrpc2.ID)
	baseCtx   context.Context

	documents  *DocumentStore
	keys       *metadata.KeyResolver
	cache      *metadata.Cache
	settings   *settings.Store
	docs       *services.Docs
	orch       *Orchestrator
	validation *ValidationTrigger
	log        logrus.FieldLogger

	registrations registrations
	shutdown      atomic.Bool
	exited        chan struct{}
	exitOnce      sync.Once
}

// New creates a new LSP server.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	if opts.DocCacheBytes <= 0 {
		opts.DocCacheBytes = 1 << 20
	}
	docs, err := services.NewDocs(opts.DocCacheBytes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		baseCtx:   context.Background(),
		documents: NewDocumentStore(),
		keys:      metadata.NewKeyResolver(),
		settings:  settings.NewStore(),
		docs:      docs,
		log:       logger.WithField("component", "lsp"),
		exited:    make(chan struct{}),
	}

	provider := opts.Provider
	if provider == nil {
		chain := metadata.ChainProvider{clientProvider{conn: s.connection}}
		if opts.MetadataFile != "" {
			chain = append(chain, metadata.FileProvider{Path: opts.MetadataFile})
		}
		provider = &metadata.RetryProvider{
			Next:            chain,
			MaxTries:        opts.Retries,
			InitialInterval: opts.RetryInterval,
		}
	}
	s.cache = metadata.NewCache(provider, logger)

	s.orch = &Orchestrator{
		documents: s.documents,
		cache:     s.cache,
		keys:      s.keys,
		settings:  s.settings,
		docs:      s.docs,
		tracer:    tracer,
		log:       s.log,
	}
	s.validation = &ValidationTrigger{
		documents: s.documents,
		cache:     s.cache,
		keys:      s.keys,
		settings:  s.settings,
		rules:     validation.DefaultRules(),
		sink:      connSink{conn: s.connection},
		tracer:    tracer,
		log:       s.log.WithField("feature", "validation"),
		workers:   opts.ValidationWorkers,
	}
	return s, nil
}

// RunStdio starts the LSP server on stdin/stdout.
// It blocks until the connection is closed or the context is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, stdioReadWriteCloser{})
}

// Run serves the protocol on rwc until the connection is closed or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	s.Serve(ctx, conn)
	defer s.docs.Close()

	select {
	case <-ctx.Done():
		return conn.Close()
	case <-s.exited:
		// The read loop may still be blocked on stdin; do not wait for it.
		_ = conn.Close()
		if !s.shutdown.Load() {
			return errExitWithoutShutdown
		}
		return nil
	case <-conn.Done():
		if s.shutdown.Load() {
			return nil
		}
		return conn.Err()
	}
}

// Serve starts handling messages arriving on conn. It does not block.
func (s *Server) Serve(ctx context.Context, conn jsonrpc2.Conn) {
	h, canceller := jsonrpc2.CancelHandler(s.handle)
	s.mu.Lock()
	s.conn = conn
	s.canceller = canceller
	s.baseCtx = ctx
	s.mu.Unlock()
	conn.Go(ctx, h)
}

func (s *Server) connection() jsonrpc2.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *Server) backgroundContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// Settings returns the settings store.
func (s *Server) Settings() *settings.Store { return s.settings }

// handle dispatches incoming JSON-RPC messages to the appropriate handler.
//
// Notifications are applied in arrival order on the read loop. Requests
// are answered from their own goroutine so that a slow metadata fetch
// never stalls the connection.
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	// Lifecycle
	case protocol.MethodInitialize:
		return s.handleInitialize(ctx, reply, req)
	case protocol.MethodInitialized:
		s.registerCapabilities()
		return nil
	case protocol.MethodShutdown:
		s.shutdown.Store(true)
		return reply(ctx, nil, nil)
	case protocol.MethodExit:
		s.exitOnce.Do(func() { close(s.exited) })
		return nil
	case protocol.MethodSetTrace:
		return nil
	case protocol.MethodCancelRequest:
		s.handleCancel(req)
		return nil

	// Document sync
	case protocol.MethodTextDocumentDidOpen:
		return s.handleDidOpen(ctx, req)
	case protocol.MethodTextDocumentDidChange:
		return s.handleDidChange(ctx, req)
	case protocol.MethodTextDocumentDidSave:
		return s.handleDidSave(req)
	case protocol.MethodTextDocumentDidClose:
		return s.handleDidClose(ctx, req)

	// Language features
	case protocol.MethodTextDocumentHover:
		return async(ctx, reply, req, s.orch.Hover)
	case protocol.MethodTextDocumentCompletion:
		return async(ctx, reply, req, s.orch.Completion)
	case protocol.MethodTextDocumentDocumentSymbol:
		return async(ctx, reply, req, s.orch.DocumentSymbols)
	case protocol.MethodTextDocumentDefinition:
		return async(ctx, reply, req, s.definition)
	case protocol.MethodTextDocumentFormatting:
		return async(ctx, reply, req, s.orch.Formatting)
	case protocol.MethodTextDocumentRangeFormatting:
		return async(ctx, reply, req, s.orch.RangeFormatting)

	// Workspace
	case protocol.MethodWorkspaceDidChangeConfiguration:
		return s.handleDidChangeConfiguration(req)
	case MethodPropertiesChanged:
		return s.handlePropertiesChanged(req)

	default:
		if _, ok := req.(*jsonrpc2.Call); !ok {
			return nil
		}
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

// async decodes the params of req, runs fn on a new goroutine and replies
// with its result. Cancelled requests are answered with a null result.
func async[P, R any](ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, fn func(context.Context, *P) R) error {
	var params P
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return replyParseError(ctx, reply, err)
	}
	go func() {
		result := fn(ctx, &params)
		replyCtx := context.WithoutCancel(ctx)
		if ctx.Err() != nil {
			_ = reply(replyCtx, nil, nil)
			return
		}
		_ = reply(replyCtx, result, nil)
	}()
	return nil
}

// handleInitialize responds to the initialize request with server capabilities.
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return replyParseError(ctx, reply, err)
	}

	s.log.WithField("client", clientInfoString(params.ClientInfo)).Info("initialize")

	s.settings.UpdateCapabilities(params.Capabilities)
	s.registrations.configure(params.Capabilities)
	if opts := gjson.GetBytes(req.Params(), "initializationOptions"); opts.Exists() {
		c := s.applyClientSettings([]byte(opts.Raw))
		s.settings.UpdateCompletion(c.Completion)
	}

	return reply(ctx, s.initializeResult(), nil)
}

func (s *Server) initializeResult() protocol.InitializeResult {
	caps := protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{},
		},
		HoverProvider: true,
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: s.settings.Snapshot().Completion.TriggerCharacters,
		},
		DocumentSymbolProvider: true,
		DefinitionProvider:     true,
	}
	if !s.registrations.formatting {
		caps.DocumentFormattingProvider = true
	}
	if !s.registrations.rangeFormatting {
		caps.DocumentRangeFormattingProvider = true
	}
	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: version.RawVersion(),
		},
	}
}

// handleDidOpen stores the document and validates it.
func (s *Server) handleDidOpen(ctx context.Context, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.log.WithError(err).Warn("invalid didOpen params")
		return nil
	}
	doc := params.TextDocument
	uri := string(doc.URI)
	s.documents.Open(uri, string(doc.LanguageID), doc.Version, doc.Text)
	s.log.WithField("uri", uri).WithField("version", doc.Version).Debug("opened")
	s.validation.Trigger(ctx, uri)
	return nil
}

// handleDidChange stores the new version and revalidates it. With full
// sync the last content change holds the whole text.
func (s *Server) handleDidChange(ctx context.Context, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.log.WithError(err).Warn("invalid didChange params")
		return nil
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}
	uri := string(params.TextDocument.URI)
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	if _, err := s.documents.Change(uri, params.TextDocument.Version, text); err != nil {
		s.log.WithError(err).WithField("uri", uri).Warn("change ignored")
		return nil
	}
	s.validation.Trigger(ctx, uri)
	return nil
}

// handleDidSave only logs: full sync already keeps the content current.
func (s *Server) handleDidSave(req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil //nolint:nilerr // malformed notifications are dropped
	}
	s.log.WithField("uri", params.TextDocument.URI).Debug("saved")
	return nil
}

// handleDidClose removes the document, drops its metadata subscriptions and
// clears its diagnostics.
func (s *Server) handleDidClose(ctx context.Context, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.log.WithError(err).Warn("invalid didClose params")
		return nil
	}
	uri := string(params.TextDocument.URI)
	if !s.documents.Close(uri) {
		return nil
	}
	s.cache.Unsubscribe(uri)
	s.validation.Clear(ctx, uri)
	return nil
}

// definition resolves the property under the cursor and asks the client
// for the location of its Java source.
func (s *Server) definition(ctx context.Context, params *protocol.DefinitionParams) any {
	target := s.orch.Definition(ctx, params)
	if target == nil {
		return nil
	}
	loc, err := requestPropertyDefinition(ctx, s.connection(), string(params.TextDocument.URI), target.Property.Source)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).WithField("property", target.Property.Name).Warn("definition lookup failed")
		}
		return nil
	}
	if loc == nil {
		return nil
	}
	return target.Result(*loc, s.settings.Snapshot().Definition.LinkSupport)
}

// handleDidChangeConfiguration applies client settings and revalidates
// every open document when they carry validation settings or reset them.
func (s *Server) handleDidChangeConfiguration(req jsonrpc2.Request) error {
	raw := gjson.GetBytes(req.Params(), "settings")
	if !raw.Exists() {
		return nil
	}
	s.applyClientSettings([]byte(raw.Raw))
	return nil
}

func (s *Server) applyClientSettings(raw []byte) settings.Client {
	c, err := settings.Decode(raw)
	if err != nil {
		s.log.WithError(err).Warn("invalid client settings, using defaults")
	}
	changed := s.settings.Apply(c)
	if changed || gjson.GetBytes(raw, settings.Section+".validation").IsObject() {
		s.revalidateAll()
	}
	return c
}

// UpdateValidation replaces the validation settings and revalidates every
// open document.
func (s *Server) UpdateValidation(v settings.Validation) {
	s.settings.UpdateValidation(v)
	s.revalidateAll()
}

func (s *Server) revalidateAll() {
	ctx := s.backgroundContext()
	s.validation.pending.Add(1)
	go func() {
		defer s.validation.pending.Done()
		if err := s.validation.RevalidateAll(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("revalidation failed")
		}
	}()
}

// handlePropertiesChanged invalidates the metadata of the announced
// projects and revalidates the documents that used it. An empty project
// list invalidates everything.
func (s *Server) handlePropertiesChanged(req jsonrpc2.Request) error {
	var params PropertiesChangedParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.log.WithError(err).Warn("invalid propertiesChanged params")
		return nil
	}
	s.keys.Reset()
	var keys []metadata.Key
	if len(params.ProjectURIs) == 0 {
		keys = s.cache.Keys()
	}
	for _, p := range params.ProjectURIs {
		keys = append(keys, metadata.KeyFromProjectURI(p))
	}
	uris := s.cache.Invalidate(keys...)
	s.log.WithField("projects", len(keys)).WithField("documents", len(uris)).Debug("metadata invalidated")
	s.validation.TriggerURIs(s.backgroundContext(), uris)
	return nil
}

// handleCancel cancels the context of an in-flight request.
func (s *Server) handleCancel(req jsonrpc2.Request) {
	var params protocol.CancelParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return
	}
	id, ok := cancelID(params.ID)
	if !ok {
		return
	}
	s.mu.RLock()
	cancel := s.canceller
	s.mu.RUnlock()
	if cancel != nil {
		cancel(id)
	}
}

// cancelID converts the id of a $/cancelRequest. Numeric ids outside the
// int32 range cannot name a request of this connection.
func cancelID(raw any) (jsonrpc2.ID, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return jsonrpc2.ID{}, false
		}
		return jsonrpc2.NewNumberID(int32(v)), true //nolint:gosec // range checked above
	case string:
		return jsonrpc2.NewStringID(v), true
	default:
		return jsonrpc2.ID{}, false
	}
}

// replyParseError sends a JSON-RPC parse error.
func replyParseError(ctx context.Context, reply jsonrpc2.Replier, err error) error {
	return reply(ctx, nil, jsonrpc2.Errorf(jsonrpc2.ParseError, "invalid params: %v", err))
}

// clientInfoString formats client info for logging.
func clientInfoString(info *protocol.ClientInfo) string {
	if info == nil {
		return "unknown"
	}
	if info.Version != "" {
		return info.Name + " " + info.Version
	}
	return info.Name
}

// stdioReadWriteCloser wraps stdin/stdout as an io.ReadWriteCloser for JSON-RPC.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error                { return nil }

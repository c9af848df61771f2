package lspserver

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
)

// DiagnosticsSink receives the diagnostics of a document. Each call
// replaces the diagnostics previously published for params.URI.
type DiagnosticsSink interface {
	PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error
}

// SinkFunc adapts a function to DiagnosticsSink.
type SinkFunc func(ctx context.Context, params *protocol.PublishDiagnosticsParams) error

// PublishDiagnostics implements DiagnosticsSink.
func (f SinkFunc) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	return f(ctx, params)
}

// ValidationTrigger computes and publishes diagnostics for open documents.
//
// Publishing is serialized with Clear: a result is only published while its
// document is still open at the version it was computed against, so a
// closed document never receives diagnostics after its clearing publish.
type ValidationTrigger struct {
	documents *DocumentStore
	cache     *metadata.Cache
	keys      KeyResolver
	settings  *settings.Store
	rules     []validation.Rule
	sink      DiagnosticsSink
	tracer    trace.Tracer
	log       logrus.FieldLogger
	workers   int

	publishMu sync.Mutex
	pending   sync.WaitGroup
}

// Trigger validates uri in the background.
func (v *ValidationTrigger) Trigger(ctx context.Context, uri string) {
	v.pending.Add(1)
	go func() {
		defer v.pending.Done()
		v.Validate(ctx, uri)
	}()
}

// TriggerURIs validates each of uris in the background.
func (v *ValidationTrigger) TriggerURIs(ctx context.Context, uris []string) {
	for _, uri := range uris {
		v.Trigger(ctx, uri)
	}
}

// RevalidateAll validates every open document once, running at most
// workers validations at a time, and returns when all have finished.
func (v *ValidationTrigger) RevalidateAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if v.workers > 0 {
		g.SetLimit(v.workers)
	}
	for _, doc := range v.documents.All() {
		g.Go(func() error {
			v.Validate(ctx, doc.URI)
			return ctx.Err()
		})
	}
	return g.Wait()
}

// Wait blocks until every background validation has finished.
func (v *ValidationTrigger) Wait() {
	v.pending.Wait()
}

// Validate computes the diagnostics of uri and publishes them. It reports
// whether a publish happened. Nothing is published when the document is
// not open, the metadata fetch fails, the context is cancelled, or the
// document changed while validating.
func (v *ValidationTrigger) Validate(ctx context.Context, uri string) bool {
	ctx, span := v.tracer.Start(ctx, "validate", trace.WithAttributes(attribute.String("uri", uri)))
	defer span.End()
	log := v.log.WithField("uri", uri)

	doc := v.documents.Get(uri)
	if doc == nil {
		return false
	}

	key := v.keys.ProjectKey(uri)
	md, err := v.cache.Fetch(ctx, metadata.Request{Key: key, URI: uri})
	if v.documents.Get(uri) == nil {
		// Closed while fetching: Fetch re-subscribed the URI after close
		// dropped it.
		v.cache.Unsubscribe(uri)
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).WithField("project", key).Warn("validation skipped")
			span.RecordError(err)
		}
		return false
	}

	diagnostics := []protocol.Diagnostic{}
	if !md.IsEmpty() {
		model, current, err := v.documents.ParsedModel(ctx, uri)
		if err != nil {
			return false
		}
		doc = current
		vs := validation.Validate(validation.Input{
			Model:    model,
			Metadata: md,
			Settings: v.settings.Snapshot().Validation,
		}, v.rules)
		diagnostics = validation.Diagnostics(vs)
	}
	if ctx.Err() != nil {
		return false
	}
	span.SetAttributes(attribute.Int("version", int(doc.Version)), attribute.Int("diagnostics", len(diagnostics)))

	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	if cur := v.documents.Get(uri); cur == nil || cur.Version != doc.Version {
		log.WithField("version", doc.Version).Debug("discarding stale diagnostics")
		return false
	}
	v.publish(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Version:     uint32(max(doc.Version, 0)), //nolint:gosec // clamped to non-negative
		Diagnostics: diagnostics,
	})
	return true
}

// Clear publishes an empty diagnostics list for uri. Callers close the
// document first so that no in-flight validation publishes afterwards.
func (v *ValidationTrigger) Clear(ctx context.Context, uri string) {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()
	v.publish(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (v *ValidationTrigger) publish(ctx context.Context, params *protocol.PublishDiagnosticsParams) {
	if err := v.sink.PublishDiagnostics(ctx, params); err != nil {
		v.log.WithError(err).WithField("uri", params.URI).Warn("failed to publish diagnostics")
	}
}

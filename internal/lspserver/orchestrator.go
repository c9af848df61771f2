package lspserver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/services"
	"github.com/tinovyatkin/propls/internal/settings"
)

// KeyResolver maps a document URI to its project key.
type KeyResolver interface {
	ProjectKey(docURI string) metadata.Key
}

// Orchestrator runs feature handlers against the current document model
// and the project metadata. Every failure along the way (unknown document,
// metadata fetch error, empty metadata, position outside the document,
// cancellation, handler panic) collapses to an empty result.
type Orchestrator struct {
	documents *DocumentStore
	cache     *metadata.Cache
	keys      KeyResolver
	settings  *settings.Store
	docs      *services.Docs
	tracer    trace.Tracer
	log       logrus.FieldLogger
}

// outcome records the state a handler ran against.
type outcome struct {
	doc      *Document
	project  metadata.Key
	metadata *metadata.ProjectMetadata
}

// run resolves the project, awaits its metadata, short-circuits on empty
// metadata, awaits the parsed model, checks for cancellation and finally
// invokes fn. ok is false when the result is empty.
func run[T any](ctx context.Context, o *Orchestrator, feature, uri string,
	fn func(in services.Input) (T, error),
) (result T, out outcome, ok bool) {
	ctx, span := o.tracer.Start(ctx, feature, trace.WithAttributes(attribute.String("uri", uri)))
	defer span.End()
	log := o.log.WithField("feature", feature).WithField("uri", uri)

	if o.documents.Get(uri) == nil {
		span.SetAttributes(attribute.String("outcome", "not-open"))
		return result, out, false
	}

	out.project = o.keys.ProjectKey(uri)
	span.SetAttributes(attribute.String("project", string(out.project)))
	md, err := o.cache.Fetch(ctx, metadata.Request{Key: out.project, URI: uri})
	if o.documents.Get(uri) == nil {
		o.cache.Unsubscribe(uri)
		span.SetAttributes(attribute.String("outcome", "not-open"))
		return result, out, false
	}
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("metadata unavailable")
			span.RecordError(err)
			span.SetStatus(codes.Error, "metadata unavailable")
		}
		span.SetAttributes(attribute.String("outcome", "no-metadata"))
		return result, out, false
	}
	out.metadata = md
	if md.IsEmpty() {
		span.SetAttributes(attribute.String("outcome", "empty-metadata"))
		return result, out, false
	}

	model, doc, err := o.documents.ParsedModel(ctx, uri)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "not-open"))
		return result, out, false
	}
	out.doc = doc
	span.SetAttributes(attribute.Int("version", int(doc.Version)))

	if ctx.Err() != nil {
		span.SetAttributes(attribute.String("outcome", "cancelled"))
		return result, out, false
	}

	in := services.Input{
		URI:      uri,
		Model:    model,
		Metadata: md,
		Settings: o.settings.Snapshot(),
		Docs:     o.docs,
	}
	result, err = invoke(in, fn)
	if err != nil {
		var locErr *properties.LocationError
		if errors.As(err, &locErr) {
			log.WithError(err).Debug("position outside document")
			span.SetAttributes(attribute.String("outcome", "location"))
		} else {
			log.WithError(err).Error("feature failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, "feature failed")
		}
		var zero T
		return zero, out, false
	}
	span.SetAttributes(attribute.String("outcome", "ok"))
	return result, out, true
}

// handlerPanic wraps a value recovered from a feature handler.
type handlerPanic struct {
	value any
	stack []byte
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v\n%s", p.value, p.stack)
}

func invoke[T any](in services.Input, fn func(services.Input) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &handlerPanic{value: r, stack: debug.Stack()}
		}
	}()
	return fn(in)
}

// Hover returns hover information, or nil.
func (o *Orchestrator) Hover(ctx context.Context, params *protocol.HoverParams) *protocol.Hover {
	uri := string(params.TextDocument.URI)
	pos := services.ToPosition(params.Position)
	h, _, _ := run(ctx, o, "hover", uri, func(in services.Input) (*protocol.Hover, error) {
		return services.Hover(in, pos)
	})
	return h
}

// Completion returns completion proposals, or nil.
func (o *Orchestrator) Completion(ctx context.Context, params *protocol.CompletionParams) *protocol.CompletionList {
	uri := string(params.TextDocument.URI)
	pos := services.ToPosition(params.Position)
	list, _, _ := run(ctx, o, "completion", uri, func(in services.Input) (*protocol.CompletionList, error) {
		return services.Completion(in, pos)
	})
	return list
}

// DocumentSymbols returns the document's symbols, tree-shaped or flat per
// settings, or nil.
func (o *Orchestrator) DocumentSymbols(ctx context.Context, params *protocol.DocumentSymbolParams) any {
	uri := string(params.TextDocument.URI)
	syms, _, ok := run(ctx, o, "documentSymbol", uri, services.Symbols)
	if !ok {
		return nil
	}
	return syms
}

// Definition returns the definition target under the cursor, or nil.
func (o *Orchestrator) Definition(ctx context.Context, params *protocol.DefinitionParams) *services.DefinitionTarget {
	uri := string(params.TextDocument.URI)
	pos := services.ToPosition(params.Position)
	target, _, _ := run(ctx, o, "definition", uri, func(in services.Input) (*services.DefinitionTarget, error) {
		return services.Definition(in, pos)
	})
	return target
}

// Formatting returns the edits formatting the whole document, or nil.
func (o *Orchestrator) Formatting(ctx context.Context, params *protocol.DocumentFormattingParams) []protocol.TextEdit {
	uri := string(params.TextDocument.URI)
	edits, _, _ := run(ctx, o, "formatting", uri, services.Format)
	return edits
}

// RangeFormatting returns the edits formatting params.Range, or nil.
func (o *Orchestrator) RangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) []protocol.TextEdit {
	uri := string(params.TextDocument.URI)
	r := params.Range
	edits, _, _ := run(ctx, o, "rangeFormatting", uri, func(in services.Input) ([]protocol.TextEdit, error) {
		return services.RangeFormat(in, r)
	})
	return edits
}

// Package services implements the language features for properties
// documents. Every function is pure: it computes a result from a parsed
// model, project metadata and a settings snapshot.
//
// Position arguments outside the document fail with
// *properties.LocationError. A nil result means "nothing to show".
package services

import (
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/settings"
)

// Input is the state a feature is computed from.
type Input struct {
	URI      string
	Model    *properties.Model
	Metadata *metadata.ProjectMetadata
	Settings *settings.Settings
	Docs     *Docs
}

func (in Input) settings() *settings.Settings {
	if in.Settings == nil {
		d := settings.Defaults()
		return &d
	}
	return in.Settings
}

// ToPosition converts an LSP position.
func ToPosition(p protocol.Position) properties.Position {
	return properties.Position{Line: int(p.Line), Character: int(p.Character)}
}

// FromPosition converts a model position to an LSP position.
func FromPosition(p properties.Position) protocol.Position {
	return protocol.Position{Line: clampUint32(p.Line), Character: clampUint32(p.Character)}
}

// FromRange converts a model range to an LSP range.
func FromRange(r properties.Range) protocol.Range {
	return protocol.Range{Start: FromPosition(r.Start), End: FromPosition(r.End)}
}

func nodeRange(m *properties.Model, n properties.Node) (protocol.Range, error) {
	r, err := m.NodeRange(n)
	if err != nil {
		return protocol.Range{}, err
	}
	return FromRange(r), nil
}

func spanRange(m *properties.Model, start, end int) (protocol.Range, error) {
	r, err := m.RangeOf(start, end)
	if err != nil {
		return protocol.Range{}, err
	}
	return FromRange(r), nil
}

func markup(value string, markdown bool) protocol.MarkupContent {
	kind := protocol.PlainText
	if markdown {
		kind = protocol.Markdown
	}
	return protocol.MarkupContent{Kind: kind, Value: value}
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

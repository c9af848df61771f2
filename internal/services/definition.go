package services

import (
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
)

// DefinitionTarget is the known property under the cursor, to be resolved
// to a source location by the client.
type DefinitionTarget struct {
	Property *metadata.Property
	// Origin is the range of the key the definition was requested on.
	Origin protocol.Range
}

// Definition returns the target for the key at pos, or nil when pos is not
// on a key of a known property with a declared source.
func Definition(in Input, pos properties.Position) (*DefinitionTarget, error) {
	key, err := PropertyAt(in.Model, pos)
	if err != nil || key == nil {
		return nil, err
	}
	prop := in.Metadata.Lookup(key.PropertyName())
	if prop == nil || prop.Source == "" {
		return nil, nil
	}
	r, err := nodeRange(in.Model, key)
	if err != nil {
		return nil, err
	}
	return &DefinitionTarget{Property: prop, Origin: r}, nil
}

// Result shapes a resolved location as the client expects: a LocationLink
// when the client supports links, a plain Location otherwise.
func (t *DefinitionTarget) Result(loc protocol.Location, linkSupport bool) any {
	if !linkSupport {
		return []protocol.Location{loc}
	}
	return []protocol.LocationLink{{
		OriginSelectionRange: &t.Origin,
		TargetURI:            loc.URI,
		TargetRange:          loc.Range,
		TargetSelectionRange: loc.Range,
	}}
}

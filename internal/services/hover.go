package services

import (
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
)

// Hover returns documentation for the node at pos:
//
//   - comment or blank space: nothing
//   - value or separator: the enum member the value names, scoped to the value
//   - key on its %profile segment: the built-in profile, scoped to the profile name
//   - key elsewhere: the property, scoped to the whole key
func Hover(in Input, pos properties.Position) (*protocol.Hover, error) {
	set := in.settings()
	if !set.Hover.Enabled {
		return nil, nil
	}
	offset, err := in.Model.OffsetAt(pos)
	if err != nil {
		return nil, err
	}
	node, err := in.Model.FindNodeAtOffset(offset)
	if err != nil {
		return nil, err
	}
	markdown := set.Hover.Markdown

	switch n := node.(type) {
	case *properties.Key:
		if n.OnProfile(offset) {
			return hoverProfile(in, n, markdown)
		}
		return hoverKey(in, n, markdown)
	case *properties.Value:
		return hoverValue(in, n.Property(), markdown)
	case *properties.Assign:
		return hoverValue(in, n.Property(), markdown)
	default:
		return nil, nil
	}
}

func hoverProfile(in Input, key *properties.Key, markdown bool) (*protocol.Hover, error) {
	item := metadata.LookupProfile(key.Profile())
	if item == nil {
		return nil, nil
	}
	start, end, _ := key.ProfileSpan()
	r, err := spanRange(in.Model, start, end)
	if err != nil {
		return nil, err
	}
	return &protocol.Hover{Contents: markup(in.Docs.Item(*item, markdown), markdown), Range: &r}, nil
}

func hoverKey(in Input, key *properties.Key, markdown bool) (*protocol.Hover, error) {
	prop := in.Metadata.Lookup(key.PropertyName())
	if prop == nil {
		return nil, nil
	}
	r, err := nodeRange(in.Model, key)
	if err != nil {
		return nil, err
	}
	docs := in.Docs.Property(prop, key.Profile(), markdown)
	return &protocol.Hover{Contents: markup(docs, markdown), Range: &r}, nil
}

func hoverValue(in Input, p *properties.Property, markdown bool) (*protocol.Hover, error) {
	if p == nil || p.Value == nil {
		return nil, nil
	}
	prop := in.Metadata.Lookup(p.PropertyName())
	if prop == nil {
		return nil, nil
	}
	item := prop.EnumItem(p.Value.Text())
	if item == nil {
		return nil, nil
	}
	r, err := nodeRange(in.Model, p.Value)
	if err != nil {
		return nil, err
	}
	return &protocol.Hover{Contents: markup(in.Docs.Item(*item, markdown), markdown), Range: &r}, nil
}

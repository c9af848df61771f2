package services

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/properties"
)

// Symbols returns a DocumentSymbol tree when the client supports
// hierarchical symbols and the tree view is enabled, and flat
// SymbolInformation otherwise.
func Symbols(in Input) (any, error) {
	set := in.settings()
	if set.Symbols.Hierarchical && set.Symbols.ShowAsTree {
		return DocumentSymbols(in)
	}
	return SymbolInformation(in)
}

// SymbolInformation lists one symbol per property key.
func SymbolInformation(in Input) ([]protocol.SymbolInformation, error) {
	props := in.Model.Properties()
	out := make([]protocol.SymbolInformation, 0, len(props))
	for _, p := range props {
		if p.Key.Text == "" {
			continue
		}
		r, err := nodeRange(in.Model, p)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.SymbolInformation{
			Name: p.Key.Text,
			Kind: protocol.SymbolKindProperty,
			Location: protocol.Location{
				URI:   protocol.DocumentURI(in.URI),
				Range: r,
			},
		})
	}
	return out, nil
}

// DocumentSymbols nests keys by their '.'-separated segments. A %profile
// prefix is its own top-level segment.
func DocumentSymbols(in Input) ([]protocol.DocumentSymbol, error) {
	var roots []*symbolNode
	for _, p := range in.Model.Properties() {
		if p.Key.Text == "" {
			continue
		}
		r, err := nodeRange(in.Model, p)
		if err != nil {
			return nil, err
		}
		var detail string
		if p.Value != nil {
			detail = p.Value.Text()
		}
		level := &roots
		var node *symbolNode
		for _, segment := range strings.Split(p.Key.Text, ".") {
			node = findOrAdd(level, segment, r)
			node.extend(r)
			level = &node.children
		}
		node.detail = detail
		node.leaf = true
	}

	out := make([]protocol.DocumentSymbol, 0, len(roots))
	for _, n := range roots {
		out = append(out, n.symbol())
	}
	return out, nil
}

type symbolNode struct {
	name     string
	detail   string
	leaf     bool
	rng      protocol.Range
	children []*symbolNode
}

func findOrAdd(level *[]*symbolNode, name string, r protocol.Range) *symbolNode {
	for _, n := range *level {
		if n.name == name {
			return n
		}
	}
	n := &symbolNode{name: name, rng: r}
	*level = append(*level, n)
	return n
}

func (n *symbolNode) extend(r protocol.Range) {
	if before(r.Start, n.rng.Start) {
		n.rng.Start = r.Start
	}
	if before(n.rng.End, r.End) {
		n.rng.End = r.End
	}
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

func (n *symbolNode) symbol() protocol.DocumentSymbol {
	kind := protocol.SymbolKindModule
	if n.leaf {
		kind = protocol.SymbolKindProperty
	}
	s := protocol.DocumentSymbol{
		Name:           n.name,
		Detail:         n.detail,
		Kind:           kind,
		Range:          n.rng,
		SelectionRange: n.rng,
	}
	for _, c := range n.children {
		s.Children = append(s.Children, c.symbol())
	}
	return s
}

// PropertyAt returns the property key under pos, or nil when pos is not on
// a key.
func PropertyAt(m *properties.Model, pos properties.Position) (*properties.Key, error) {
	node, err := m.FindNodeAt(pos)
	if err != nil {
		return nil, err
	}
	key, _ := node.(*properties.Key)
	return key, nil
}

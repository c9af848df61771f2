package services

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/properties"
)

// Format rewrites every node in canonical form: one node per line, key and
// value joined by '=' (or " = " with SurroundEqualsWithSpaces), trailing
// whitespace removed, runs of blank lines collapsed to one. It returns a
// single whole-document edit, or nil when nothing changes.
func Format(in Input) ([]protocol.TextEdit, error) {
	nodes := in.Model.Nodes()
	text := in.Model.Text()
	formatted := formatNodes(in, nodes, 0)
	if len(nodes) > 0 {
		formatted += "\n"
	}
	if formatted == text {
		return nil, nil
	}
	end, err := in.Model.PositionAt(len(text))
	if err != nil {
		return nil, err
	}
	return []protocol.TextEdit{{
		Range:   protocol.Range{End: FromPosition(end)},
		NewText: formatted,
	}}, nil
}

// RangeFormat formats the nodes intersecting r, replacing the span from the
// first to the last of them.
func RangeFormat(in Input, r protocol.Range) ([]protocol.TextEdit, error) {
	start, err := in.Model.OffsetAt(ToPosition(r.Start))
	if err != nil {
		return nil, err
	}
	end, err := in.Model.OffsetAt(ToPosition(r.End))
	if err != nil {
		return nil, err
	}

	var selected []properties.Node
	for _, n := range in.Model.Nodes() {
		if n.End() >= start && n.Start() <= end {
			selected = append(selected, n)
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}
	from, to := selected[0].Start(), selected[len(selected)-1].End()
	formatted := formatNodes(in, selected, from)
	if formatted == in.Model.Text()[from:to] {
		return nil, nil
	}
	rng, err := spanRange(in.Model, from, to)
	if err != nil {
		return nil, err
	}
	return []protocol.TextEdit{{Range: rng, NewText: formatted}}, nil
}

func formatNodes(in Input, nodes []properties.Node, from int) string {
	text := in.Model.Text()
	sep := "="
	if in.settings().Formatting.SurroundEqualsWithSpaces {
		sep = " = "
	}

	var b strings.Builder
	prevEnd := from
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n")
			if blankLineBetween(text[prevEnd:n.Start()]) {
				b.WriteString("\n")
			}
		}
		switch n := n.(type) {
		case *properties.Comment:
			b.WriteString(strings.TrimRight(n.Text, " \t\f"))
		case *properties.Property:
			b.WriteString(n.Key.Text)
			if n.Assign != nil || n.Value != nil {
				b.WriteString(sep)
			}
			if n.Value != nil {
				b.WriteString(strings.TrimRight(n.Value.Raw, " \t\f"))
			}
		}
		prevEnd = n.End()
	}
	return b.String()
}

// blankLineBetween reports whether gap, the text between two nodes,
// contains an empty line.
func blankLineBetween(gap string) bool {
	gap = strings.ReplaceAll(gap, "\r\n", "\n")
	gap = strings.ReplaceAll(gap, "\r", "\n")
	return strings.Count(gap, "\n") > 1
}

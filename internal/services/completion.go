package services

import (
	"sort"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
)

// Completion proposes property names, profiles after '%', or values after
// the separator, depending on the node at pos.
func Completion(in Input, pos properties.Position) (*protocol.CompletionList, error) {
	offset, err := in.Model.OffsetAt(pos)
	if err != nil {
		return nil, err
	}
	node, err := in.Model.FindNodeAtOffset(offset)
	if err != nil {
		return nil, err
	}

	var items []protocol.CompletionItem
	switch n := node.(type) {
	case nil:
		items = completeKeys(in, nil, pos, offset)
	case *properties.Key:
		if n.OnProfile(offset) && offset > n.Start() {
			items, err = completeProfiles(in, n)
		} else {
			items = completeKeys(in, n, pos, offset)
		}
	case *properties.Assign:
		if offset > n.Start() {
			items, err = completeValues(in, n.Property(), pos)
		}
	case *properties.Value:
		items, err = completeValues(in, n.Property(), pos)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &protocol.CompletionList{Items: items}, nil
}

func completeProfiles(in Input, key *properties.Key) ([]protocol.CompletionItem, error) {
	start, end, ok := key.ProfileSpan()
	if !ok {
		start = key.Start() + 1
		end = start
	}
	r, err := spanRange(in.Model, start, end)
	if err != nil {
		return nil, err
	}
	markdown := in.settings().Completion.MarkdownDocs
	items := make([]protocol.CompletionItem, 0, len(metadata.DefaultProfiles))
	for _, p := range metadata.DefaultProfiles {
		items = append(items, protocol.CompletionItem{
			Label:         p.Name,
			Kind:          protocol.CompletionItemKindValue,
			Documentation: markup(in.Docs.Item(p, markdown), markdown),
			TextEdit:      &protocol.TextEdit{Range: r, NewText: p.Name},
		})
	}
	return items, nil
}

func completeKeys(in Input, key *properties.Key, pos properties.Position, offset int) []protocol.CompletionItem {
	if in.Metadata.IsEmpty() {
		return nil
	}
	set := in.settings()

	// Replace the property name part of the key, keeping any %profile. prefix.
	r := protocol.Range{Start: FromPosition(pos), End: FromPosition(pos)}
	hasAssign := false
	if key != nil {
		start := key.Start()
		if profile := key.Profile(); profile != "" && strings.Contains(key.Text, ".") {
			start += len(profile) + 2
		}
		if start <= offset {
			if rr, err := spanRange(in.Model, start, key.End()); err == nil {
				r = rr
			}
		}
		hasAssign = key.Property().Assign != nil
	}

	snippets := set.Completion.SnippetSupport && !hasAssign
	items := make([]protocol.CompletionItem, 0, len(in.Metadata.Properties))
	for _, p := range in.Metadata.Properties {
		if p == nil {
			continue
		}
		newText := p.Name
		format := protocol.InsertTextFormatPlainText
		switch {
		case hasAssign:
		case snippets:
			newText = propertySnippet(p)
			format = protocol.InsertTextFormatSnippet
		default:
			newText = p.Name + "=" + p.DefaultValue
		}
		items = append(items, protocol.CompletionItem{
			Label:            p.Name,
			Kind:             protocol.CompletionItemKindProperty,
			Detail:           p.Type,
			Documentation:    markup(in.Docs.Property(p, "", set.Completion.MarkdownDocs), set.Completion.MarkdownDocs),
			TextEdit:         &protocol.TextEdit{Range: r, NewText: newText},
			InsertTextFormat: format,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// propertySnippet builds name=value with tab stops for map key placeholders
// and the value (a choice when the value set is known).
func propertySnippet(p *metadata.Property) string {
	var b strings.Builder
	stop := 1
	parts := strings.Split(p.Name, metadata.MapKeyPlaceholder)
	for i, part := range parts {
		b.WriteString(escapeSnippet(part))
		if i < len(parts)-1 {
			b.WriteString("${" + strconv.Itoa(stop) + ":key}")
			stop++
		}
	}
	b.WriteString("=")

	n := strconv.Itoa(stop)
	if values := p.Values(); len(values) > 0 {
		names := make([]string, 0, len(values))
		for _, v := range values {
			names = append(names, escapeChoice(v.Name))
		}
		b.WriteString("${" + n + "|" + strings.Join(names, ",") + "|}")
		return b.String()
	}
	if p.DefaultValue != "" {
		b.WriteString("${" + n + ":" + escapeSnippet(p.DefaultValue) + "}")
		return b.String()
	}
	b.WriteString("$" + n)
	return b.String()
}

var (
	snippetEscaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`)
	choiceEscaper  = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`, `,`, `\,`, `|`, `\|`)
)

func escapeSnippet(s string) string { return snippetEscaper.Replace(s) }
func escapeChoice(s string) string  { return choiceEscaper.Replace(s) }

func completeValues(in Input, p *properties.Property, pos properties.Position) ([]protocol.CompletionItem, error) {
	if p == nil {
		return nil, nil
	}
	prop := in.Metadata.Lookup(p.PropertyName())
	if prop == nil {
		return nil, nil
	}
	values := prop.Values()
	if len(values) == 0 {
		return nil, nil
	}

	r := protocol.Range{Start: FromPosition(pos), End: FromPosition(pos)}
	if p.Value != nil {
		vr, err := nodeRange(in.Model, p.Value)
		if err != nil {
			return nil, err
		}
		r = vr
	}

	markdown := in.settings().Completion.MarkdownDocs
	items := make([]protocol.CompletionItem, 0, len(values))
	for _, v := range values {
		items = append(items, protocol.CompletionItem{
			Label:         v.Name,
			Kind:          protocol.CompletionItemKindValue,
			Documentation: markup(in.Docs.Item(v, markdown), markdown),
			TextEdit:      &protocol.TextEdit{Range: r, NewText: v.Name},
		})
	}
	return items, nil
}

package services

import (
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/tinovyatkin/propls/internal/metadata"
)

// Docs renders property, enum and profile documentation as markdown or
// plain text. Plain text conversion of markdown descriptions is cached.
// A nil *Docs renders without a cache.
type Docs struct {
	md    goldmark.Markdown
	plain *ristretto.Cache[string, string]
}

// NewDocs returns a renderer caching up to maxCostBytes of converted text.
// A non-positive size disables the cache.
func NewDocs(maxCostBytes int64) (*Docs, error) {
	d := &Docs{md: goldmark.New()}
	if maxCostBytes <= 0 {
		return d, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: max(maxCostBytes/100*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	d.plain = c
	return d, nil
}

// Close releases the cache.
func (d *Docs) Close() {
	if d != nil && d.plain != nil {
		d.plain.Close()
	}
}

// Property renders the documentation of p as used with profile (may be
// empty): the name, the description, then Profile, Type, Default, Phase and
// Extension lines for the values that are present.
func (d *Docs) Property(p *metadata.Property, profile string, markdown bool) string {
	var b strings.Builder
	title(&b, p.Name, markdown)
	d.description(&b, p.Docs, markdown)

	params := [][2]string{
		{"Profile", profile},
		{"Type", p.Type},
		{"Default", p.DefaultValue},
		{"Phase", p.Phase.Label()},
		{"Extension", p.ExtensionName},
	}
	first := true
	for _, param := range params {
		if param[1] == "" {
			continue
		}
		if first {
			b.WriteString("\n")
			first = false
		}
		b.WriteString("\n")
		if markdown {
			b.WriteString(" * " + param[0] + ": `" + param[1] + "`")
		} else {
			b.WriteString(param[0] + ": " + param[1])
		}
	}
	return b.String()
}

// Item renders an enum member or a profile.
func (d *Docs) Item(item metadata.EnumItem, markdown bool) string {
	var b strings.Builder
	title(&b, item.Name, markdown)
	d.description(&b, item.Docs, markdown)
	return b.String()
}

func title(b *strings.Builder, name string, markdown bool) {
	if markdown {
		b.WriteString("**" + strings.ReplaceAll(name, "*", `\*`) + "**")
		return
	}
	b.WriteString(name)
}

func (d *Docs) description(b *strings.Builder, docs string, markdown bool) {
	docs = strings.TrimSpace(docs)
	if docs == "" {
		return
	}
	b.WriteString("\n\n")
	if markdown {
		b.WriteString(docs)
		return
	}
	b.WriteString(d.PlainText(docs))
}

// PlainText strips markdown formatting from src.
func (d *Docs) PlainText(src string) string {
	if d != nil && d.plain != nil {
		if s, ok := d.plain.Get(src); ok {
			return s
		}
	}
	md := goldmark.New()
	if d != nil && d.md != nil {
		md = d.md
	}
	s := toPlainText(md, src)
	if d != nil && d.plain != nil {
		d.plain.Set(src, s, int64(len(src)+len(s)))
	}
	return s
}

func toPlainText(md goldmark.Markdown, src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.NextSibling() != nil {
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := range lines.Len() {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

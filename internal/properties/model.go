// Package properties parses application.properties documents into an
// immutable node tree addressed by byte offset and by LSP-style position.
package properties

import "strings"

// NodeKind identifies the concrete type behind a Node.
type NodeKind int

const (
	KindComment NodeKind = iota + 1
	KindProperty
	KindKey
	KindAssign
	KindValue
)

func (k NodeKind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindProperty:
		return "property"
	case KindKey:
		return "key"
	case KindAssign:
		return "assign"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// ProfileMarker prefixes a profile name on a property key, e.g. %dev.
const ProfileMarker = '%'

// Node is one element of the parsed tree. Offsets are byte offsets into the
// document text; End is exclusive.
type Node interface {
	Kind() NodeKind
	Start() int
	End() int
	Parent() Node
}

type span struct {
	start, end int
}

func (s span) Start() int { return s.start }
func (s span) End() int   { return s.end }

// Comment is a line starting with '#' or '!'.
type Comment struct {
	span
	Text string
}

func (*Comment) Kind() NodeKind { return KindComment }
func (*Comment) Parent() Node   { return nil }

// Property is one logical key/value line.
type Property struct {
	span
	Key    *Key
	Assign *Assign // nil when the separator is missing
	Value  *Value  // nil when no value text follows the key
}

func (*Property) Kind() NodeKind { return KindProperty }
func (*Property) Parent() Node   { return nil }

// PropertyName returns the key without its profile, or "" for a missing key.
func (p *Property) PropertyName() string {
	if p.Key == nil {
		return ""
	}
	return p.Key.PropertyName()
}

// Profile returns the key's profile name, or "".
func (p *Property) Profile() string {
	if p.Key == nil {
		return ""
	}
	return p.Key.Profile()
}

// Key is the property key, including an optional %profile prefix.
type Key struct {
	span
	Text     string
	property *Property
}

func (*Key) Kind() NodeKind { return KindKey }
func (k *Key) Parent() Node { return k.property }

// Property returns the property owning the key.
func (k *Key) Property() *Property { return k.property }

// Profile returns the profile name for keys of the form %profile.name, or "".
func (k *Key) Profile() string {
	if len(k.Text) == 0 || k.Text[0] != ProfileMarker {
		return ""
	}
	rest := k.Text[1:]
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// PropertyName returns the key text without the profile prefix.
func (k *Key) PropertyName() string {
	if len(k.Text) == 0 || k.Text[0] != ProfileMarker {
		return k.Text
	}
	i := strings.IndexByte(k.Text, '.')
	if i < 0 {
		return ""
	}
	return k.Text[i+1:]
}

// OnProfile reports whether offset falls on the %profile segment of the key:
// the marker or the profile name, up to the first '.'.
func (k *Key) OnProfile(offset int) bool {
	if len(k.Text) == 0 || k.Text[0] != ProfileMarker {
		return false
	}
	end := k.start + 1 + len(k.Profile())
	if end == k.end {
		return offset >= k.start && offset <= end
	}
	return offset >= k.start && offset < end
}

// ProfileSpan returns the byte span of the profile name (without the marker).
// ok is false when the key has no profile.
func (k *Key) ProfileSpan() (start, end int, ok bool) {
	profile := k.Profile()
	if profile == "" {
		return 0, 0, false
	}
	return k.start + 1, k.start + 1 + len(profile), true
}

// Assign is the '=' or ':' separator.
type Assign struct {
	span
	property *Property
}

func (*Assign) Kind() NodeKind { return KindAssign }
func (a *Assign) Parent() Node { return a.property }

// Property returns the property owning the separator.
func (a *Assign) Property() *Property { return a.property }

// Value is the raw value text, possibly spanning continuation lines.
type Value struct {
	span
	Raw      string
	property *Property
}

func (*Value) Kind() NodeKind { return KindValue }
func (v *Value) Parent() Node { return v.property }

// Property returns the property owning the value.
func (v *Value) Property() *Property { return v.property }

// Text returns the logical value: continuation sequences are joined and
// leading whitespace of continued lines is dropped.
func (v *Value) Text() string {
	if !strings.Contains(v.Raw, "\\") {
		return v.Raw
	}
	var b strings.Builder
	lines := strings.Split(strings.ReplaceAll(v.Raw, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			line = strings.TrimLeft(line, " \t\f")
		}
		if i < len(lines)-1 && continues(line) {
			line = line[:len(line)-1]
		}
		b.WriteString(line)
	}
	return b.String()
}

// Model is the parsed document. It is immutable once returned by Parse.
type Model struct {
	text       string
	lineStarts []int
	nodes      []Node
}

// Text returns the source text the model was parsed from.
func (m *Model) Text() string { return m.text }

// Nodes returns the top-level nodes (comments and properties) in document order.
func (m *Model) Nodes() []Node { return m.nodes }

// LineCount returns the number of lines in the document.
func (m *Model) LineCount() int { return len(m.lineStarts) }

// Properties returns all properties in document order.
func (m *Model) Properties() []*Property {
	props := make([]*Property, 0, len(m.nodes))
	for _, n := range m.nodes {
		if p, ok := n.(*Property); ok {
			props = append(props, p)
		}
	}
	return props
}

// Comments returns all comments in document order.
func (m *Model) Comments() []*Comment {
	var comments []*Comment
	for _, n := range m.nodes {
		if c, ok := n.(*Comment); ok {
			comments = append(comments, c)
		}
	}
	return comments
}

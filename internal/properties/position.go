package properties

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a zero-based line and UTF-16 character offset, matching the
// LSP position encoding.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position
	End   Position
}

// LocationError reports an offset or position outside the document.
type LocationError struct {
	// Offset is the rejected byte offset, or -1 when a position was rejected.
	Offset   int
	Position Position
	// Length is the document length in bytes.
	Length int
}

func (e *LocationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("offset %d outside document of length %d", e.Offset, e.Length)
	}
	return fmt.Sprintf("position %d:%d outside document", e.Position.Line, e.Position.Character)
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineContentEnd returns the byte offset where line's content ends, before
// its line terminator.
func (m *Model) lineContentEnd(line int) int {
	end := len(m.text)
	if line+1 < len(m.lineStarts) {
		end = m.lineStarts[line+1]
	}
	for end > m.lineStarts[line] && (m.text[end-1] == '\n' || m.text[end-1] == '\r') {
		end--
	}
	return end
}

// OffsetAt converts a position to a byte offset.
func (m *Model) OffsetAt(pos Position) (int, error) {
	if pos.Line < 0 || pos.Line >= len(m.lineStarts) || pos.Character < 0 {
		return 0, &LocationError{Offset: -1, Position: pos, Length: len(m.text)}
	}
	offset := m.lineStarts[pos.Line]
	end := m.lineContentEnd(pos.Line)
	units := 0
	for units < pos.Character {
		if offset >= end {
			return 0, &LocationError{Offset: -1, Position: pos, Length: len(m.text)}
		}
		r, size := utf8.DecodeRuneInString(m.text[offset:end])
		units += utf16.RuneLen(r)
		offset += size
	}
	return offset, nil
}

// PositionAt converts a byte offset to a position.
func (m *Model) PositionAt(offset int) (Position, error) {
	if offset < 0 || offset > len(m.text) {
		return Position{}, &LocationError{Offset: offset, Length: len(m.text)}
	}
	line := m.lineOf(offset)
	character := 0
	for _, r := range m.text[m.lineStarts[line]:offset] {
		character += utf16.RuneLen(r)
	}
	return Position{Line: line, Character: character}, nil
}

func (m *Model) lineOf(offset int) int {
	lo, hi := 0, len(m.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// RangeOf returns the range covered by the byte span [start, end).
func (m *Model) RangeOf(start, end int) (Range, error) {
	s, err := m.PositionAt(start)
	if err != nil {
		return Range{}, err
	}
	e, err := m.PositionAt(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: s, End: e}, nil
}

// NodeRange returns the range covered by n.
func (m *Model) NodeRange(n Node) (Range, error) {
	return m.RangeOf(n.Start(), n.End())
}

// FindNodeAt returns the innermost node at pos, or nil when pos is on blank
// space. It fails with *LocationError when pos is outside the document.
func (m *Model) FindNodeAt(pos Position) (Node, error) {
	offset, err := m.OffsetAt(pos)
	if err != nil {
		return nil, err
	}
	return m.FindNodeAtOffset(offset)
}

// FindNodeAtOffset returns the innermost node at offset. When offset sits on
// the boundary between two nodes the later one wins.
func (m *Model) FindNodeAtOffset(offset int) (Node, error) {
	if offset < 0 || offset > len(m.text) {
		return nil, &LocationError{Offset: offset, Length: len(m.text)}
	}
	var found Node
	for _, n := range m.nodes {
		if n.Start() > offset {
			break
		}
		if offset <= n.End() {
			found = n
		}
	}
	prop, ok := found.(*Property)
	if !ok {
		return found, nil
	}
	var inner Node = prop
	for _, child := range prop.children() {
		if child.Start() <= offset && offset <= child.End() {
			inner = child
		}
	}
	return inner, nil
}

func (p *Property) children() []Node {
	children := make([]Node, 0, 3)
	if p.Key != nil {
		children = append(children, p.Key)
	}
	if p.Assign != nil {
		children = append(children, p.Assign)
	}
	if p.Value != nil {
		children = append(children, p.Value)
	}
	return children
}

package properties

import (
	"io"
	"os"
	"strings"
)

// Parse parses document text into a Model. Parsing never fails: malformed
// lines produce properties with missing separators or values, which
// validation reports.
func Parse(text string) *Model {
	m := &Model{
		text:       text,
		lineStarts: computeLineStarts(text),
	}
	p := parser{text: text}
	m.nodes = p.parse()
	return m
}

// ParseReader reads the entire content of r and parses it.
func ParseReader(r io.Reader) (*Model, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(content)), nil
}

// ParseFile parses a properties file. If path is "-", stdin is read.
func ParseFile(path string) (*Model, error) {
	if path == "-" {
		return ParseReader(os.Stdin)
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseReader(f)
}

type parser struct {
	text string
	pos  int
}

func (p *parser) parse() []Node {
	var nodes []Node
	for p.pos < len(p.text) {
		p.skipBlank()
		if p.pos >= len(p.text) {
			break
		}
		switch c := p.text[p.pos]; {
		case c == '\n' || c == '\r':
			p.skipNewline()
		case c == '#' || c == '!':
			nodes = append(nodes, p.parseComment())
		default:
			nodes = append(nodes, p.parseProperty())
		}
	}
	return nodes
}

func (p *parser) parseComment() *Comment {
	start := p.pos
	end := p.lineEnd(start)
	p.pos = end
	return &Comment{span: span{start, end}, Text: p.text[start:end]}
}

func (p *parser) parseProperty() *Property {
	prop := &Property{}
	start := p.pos

	keyEnd := p.scanKey(start)
	prop.Key = &Key{span: span{start, keyEnd}, Text: p.text[start:keyEnd], property: prop}
	p.pos = keyEnd
	end := keyEnd

	p.skipBlank()
	if p.pos < len(p.text) && (p.text[p.pos] == '=' || p.text[p.pos] == ':') {
		prop.Assign = &Assign{span: span{p.pos, p.pos + 1}, property: prop}
		p.pos++
		end = p.pos
		p.skipBlank()
	}

	if p.pos < len(p.text) && p.text[p.pos] != '\n' && p.text[p.pos] != '\r' {
		valueStart := p.pos
		valueEnd := p.logicalLineEnd(valueStart)
		prop.Value = &Value{
			span:     span{valueStart, valueEnd},
			Raw:      p.text[valueStart:valueEnd],
			property: prop,
		}
		p.pos = valueEnd
		end = valueEnd
	}

	prop.span = span{start, end}
	return prop
}

// scanKey returns the end of the key starting at start: the first unescaped
// separator or whitespace.
func (p *parser) scanKey(start int) int {
	i := start
	for i < len(p.text) {
		switch p.text[i] {
		case '\\':
			if i+1 < len(p.text) && p.text[i+1] != '\n' && p.text[i+1] != '\r' {
				i += 2
				continue
			}
			return i
		case '=', ':', ' ', '\t', '\f', '\n', '\r':
			return i
		}
		i++
	}
	return i
}

// logicalLineEnd returns the end of a value, following backslash
// continuations onto subsequent lines.
func (p *parser) logicalLineEnd(start int) int {
	end := p.lineEnd(start)
	for end < len(p.text) && continues(p.text[start:end]) {
		next := end
		if p.text[next] == '\r' {
			next++
		}
		if next < len(p.text) && p.text[next] == '\n' {
			next++
		}
		end = p.lineEnd(next)
	}
	return end
}

func (p *parser) lineEnd(from int) int {
	if i := strings.IndexAny(p.text[from:], "\r\n"); i >= 0 {
		return from + i
	}
	return len(p.text)
}

func (p *parser) skipBlank() {
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case ' ', '\t', '\f':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) skipNewline() {
	if p.text[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.text) && p.text[p.pos] == '\n' {
		p.pos++
	}
}

// continues reports whether line ends with an odd number of backslashes.
func continues(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

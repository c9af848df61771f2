package settings

import (
	"slices"
	"sync"
	"sync/atomic"

	"go.lsp.dev/protocol"
)

// Store holds the current Settings. Writers are serialized and publish a
// new snapshot; readers never block.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Settings]
}

// NewStore returns a Store holding Defaults.
func NewStore() *Store {
	s := &Store{}
	d := Defaults()
	s.cur.Store(&d)
	return s
}

// Snapshot returns the current settings. The result must not be modified.
func (s *Store) Snapshot() *Settings {
	return s.cur.Load()
}

func (s *Store) update(fn func(next *Settings)) (prev, next *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.cur.Load()
	n := *prev
	fn(&n)
	s.cur.Store(&n)
	return prev, &n
}

// UpdateCapabilities derives the capability-dependent fields of every
// record from the client's capabilities.
func (s *Store) UpdateCapabilities(caps protocol.ClientCapabilities) {
	s.update(func(next *Settings) {
		td := caps.TextDocument
		if td == nil {
			return
		}
		if td.Completion != nil && td.Completion.CompletionItem != nil {
			item := td.Completion.CompletionItem
			next.Completion.SnippetSupport = item.SnippetSupport
			next.Completion.MarkdownDocs = prefersMarkdown(item.DocumentationFormat)
		}
		if td.Hover != nil {
			next.Hover.Markdown = prefersMarkdown(td.Hover.ContentFormat)
		}
		if td.DocumentSymbol != nil {
			next.Symbols.Hierarchical = td.DocumentSymbol.HierarchicalDocumentSymbolSupport
		}
		if td.Definition != nil {
			next.Definition.LinkSupport = td.Definition.LinkSupport
		}
	})
}

func prefersMarkdown(formats []protocol.MarkupKind) bool {
	return slices.Contains(formats, protocol.Markdown)
}

// UpdateCompletion replaces the configurable completion fields, keeping the
// capability-derived ones.
func (s *Store) UpdateCompletion(c Completion) {
	s.update(func(next *Settings) {
		next.Completion.TriggerCharacters = slices.Clone(c.TriggerCharacters)
	})
}

// UpdateValidation replaces the validation record.
func (s *Store) UpdateValidation(v Validation) {
	s.update(func(next *Settings) { next.Validation = v })
}

// Apply merges client configuration into the current settings, keeping the
// capability-derived fields and the completion record. It reports whether
// validation changed.
func (s *Store) Apply(c Client) (validationChanged bool) {
	prev, next := s.update(func(next *Settings) {
		next.Hover.Enabled = c.Hover.Enabled
		next.Formatting = c.Formatting
		next.Symbols.ShowAsTree = c.Symbols.ShowAsTree
		next.Validation = c.Validation
	})
	return !prev.Validation.Equal(next.Validation)
}

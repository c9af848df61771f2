package lspserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tinovyatkin/propls/internal/properties"
)

// ErrNotOpen is returned for operations on documents the client has not opened.
var ErrNotOpen = errors.New("document not open")

// StaleVersionError is returned by Change when the new version does not
// exceed the current one.
type StaleVersionError struct {
	URI     string
	Current int32
	Got     int32
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("%s: version %d is not newer than %d", e.URI, e.Got, e.Current)
}

// Document is one version of an open text document. A Document is never
// modified once stored; Change replaces it.
type Document struct {
	// URI is the document URI (e.g., "file:///project/application.properties").
	URI string

	// LanguageID is the language identifier reported by the client.
	LanguageID string

	// Version is the document version as reported by the client.
	Version int32

	// Content is the full text of this version.
	Content string

	model func() *properties.Model
}

// DocumentStore manages open documents in the LSP server.
// It is safe for concurrent access.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Document

	parse  func(string) *properties.Model
	parses atomic.Int64
}

// NewDocumentStore creates a new empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:  make(map[string]*Document),
		parse: properties.Parse,
	}
}

func (s *DocumentStore) newDocument(uri, languageID string, version int32, content string) *Document {
	doc := &Document{URI: uri, LanguageID: languageID, Version: version, Content: content}
	doc.model = sync.OnceValue(func() *properties.Model {
		s.parses.Add(1)
		return s.parse(content)
	})
	return doc
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri, languageID string, version int32, content string) *Document {
	doc := s.newDocument(uri, languageID, version, content)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = doc
	return doc
}

// Change stores a new version of an open document. The parsed model of the
// previous version is dropped for new readers; readers holding the old
// Document keep a consistent view of it.
func (s *DocumentStore) Change(uri string, version int32, content string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[uri]
	if !ok {
		return nil, ErrNotOpen
	}
	if version <= cur.Version {
		return nil, &StaleVersionError{URI: uri, Current: cur.Version, Got: version}
	}
	doc := s.newDocument(uri, cur.LanguageID, version, content)
	s.docs[uri] = doc
	return doc, nil
}

// Close removes a document from the store. It reports whether the
// document was open.
func (s *DocumentStore) Close(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[uri]
	delete(s.docs, uri)
	return ok
}

// Get retrieves a document by URI. Returns nil if not found.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// All returns every open document, ordered by URI.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// ParsedModel returns the parsed model of the current version of uri along
// with that version. Concurrent callers for one version share a single
// parse.
func (s *DocumentStore) ParsedModel(ctx context.Context, uri string) (*properties.Model, *Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	doc := s.Get(uri)
	if doc == nil {
		return nil, nil, ErrNotOpen
	}
	return doc.model(), doc, nil
}

// Parses returns how many parses the store has run.
func (s *DocumentStore) Parses() int64 {
	return s.parses.Load()
}

package lspserver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_Lifecycle(t *testing.T) {
	t.Parallel()

	s := NewDocumentStore()
	uri := "file:///p/application.properties"

	s.Open(uri, "quarkus-properties", 1, "a=1")
	doc := s.Get(uri)
	require.NotNil(t, doc)
	assert.Equal(t, int32(1), doc.Version)

	changed, err := s.Change(uri, 2, "a=2")
	require.NoError(t, err)
	assert.Equal(t, "quarkus-properties", changed.LanguageID)
	assert.Equal(t, "a=1", doc.Content, "older versions are not mutated")

	_, err = s.Change(uri, 2, "a=3")
	var stale *StaleVersionError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, int32(2), s.Get(uri).Version)

	_, err = s.Change("file:///other", 1, "")
	require.ErrorIs(t, err, ErrNotOpen)

	assert.True(t, s.Close(uri))
	assert.False(t, s.Close(uri))
	assert.Nil(t, s.Get(uri))
}

func TestDocumentStore_ParsedModelPerVersion(t *testing.T) {
	t.Parallel()

	s := NewDocumentStore()
	uri := "file:///p/application.properties"
	s.Open(uri, "", 1, "a=1")

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, doc, err := s.ParsedModel(t.Context(), uri)
			assert.NoError(t, err)
			assert.Equal(t, int32(1), doc.Version)
			assert.Len(t, m.Properties(), 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), s.Parses(), "one parse per version")

	_, err := s.Change(uri, 2, "a=1\nb=2")
	require.NoError(t, err)
	m, doc, err := s.ParsedModel(t.Context(), uri)
	require.NoError(t, err)
	assert.Equal(t, int32(2), doc.Version)
	assert.Len(t, m.Properties(), 2, "requests after a change see the new version")
	assert.Equal(t, int64(2), s.Parses())

	_, _, err = s.ParsedModel(t.Context(), "file:///missing")
	require.ErrorIs(t, err, ErrNotOpen)
}

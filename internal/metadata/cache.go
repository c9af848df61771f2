package metadata

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache holds project metadata per Key. Concurrent fetches of one key share
// a single call to the Provider; completed results are kept until the key
// is invalidated. Failed fetches are not cached.
//
// The cache also records which document URIs fetched each key so that
// invalidation can report the documents needing revalidation.
type Cache struct {
	provider Provider
	log      logrus.FieldLogger

	group singleflight.Group

	mu          sync.Mutex
	entries     map[Key]*ProjectMetadata
	generations map[Key]uint64
	subscribers map[Key]map[string]struct{}
}

// NewCache returns a Cache fetching from provider.
func NewCache(provider Provider, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		provider:    provider,
		log:         log.WithField("component", "metadata"),
		entries:     make(map[Key]*ProjectMetadata),
		generations: make(map[Key]uint64),
		subscribers: make(map[Key]map[string]struct{}),
	}
}

// Fetch returns the metadata for req.Key, calling the provider at most once
// for all concurrent callers. req.URI is recorded as a subscriber of the key.
//
// Cancelling ctx abandons the wait for this caller only; the shared fetch
// keeps running for the others. Provider failures are returned as
// *FetchError.
func (c *Cache) Fetch(ctx context.Context, req Request) (*ProjectMetadata, error) {
	c.mu.Lock()
	if req.URI != "" {
		subs := c.subscribers[req.Key]
		if subs == nil {
			subs = make(map[string]struct{})
			c.subscribers[req.Key] = subs
		}
		subs[req.URI] = struct{}{}
	}
	if md, ok := c.entries[req.Key]; ok {
		c.mu.Unlock()
		return md, nil
	}
	gen := c.generations[req.Key]
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(req.Key, gen), func() (any, error) {
		c.mu.Lock()
		if md, ok := c.entries[req.Key]; ok && c.generations[req.Key] == gen {
			c.mu.Unlock()
			return md, nil
		}
		c.mu.Unlock()

		c.log.WithField("project", req.Key).Debug("fetching metadata")
		md, err := c.provider.Fetch(fetchCtx, req)
		if err != nil {
			return nil, err
		}
		if md == nil {
			md = New(string(req.Key))
		}

		c.mu.Lock()
		if c.generations[req.Key] == gen {
			c.entries[req.Key] = md
		}
		c.mu.Unlock()
		c.log.WithField("project", req.Key).WithField("properties", len(md.Properties)).Debug("metadata fetched")
		return md, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var fe *FetchError
			if errors.As(res.Err, &fe) {
				return nil, fe
			}
			return nil, &FetchError{Key: req.Key, Err: res.Err}
		}
		md, _ := res.Val.(*ProjectMetadata)
		return md, nil
	}
}

func flightKey(k Key, gen uint64) string {
	return string(k) + "#" + strconv.FormatUint(gen, 10)
}

// Invalidate drops the cached metadata of keys and returns, sorted and
// without duplicates, the URIs that fetched any of them since their last
// invalidation. In-flight fetches started before the call still complete
// for their waiters but are not stored.
func (c *Cache) Invalidate(keys ...Key) []string {
	c.mu.Lock()
	seen := make(map[string]struct{})
	for _, k := range keys {
		gen := c.generations[k]
		c.generations[k] = gen + 1
		delete(c.entries, k)
		c.group.Forget(flightKey(k, gen))
		for u := range c.subscribers[k] {
			seen[u] = struct{}{}
		}
		delete(c.subscribers, k)
	}
	c.mu.Unlock()

	uris := make([]string, 0, len(seen))
	for u := range seen {
		uris = append(uris, u)
	}
	slices.Sort(uris)
	if len(keys) > 0 {
		c.log.WithField("projects", keys).WithField("documents", len(uris)).Info("metadata invalidated")
	}
	return uris
}

// Keys returns the keys that currently have subscribers, sorted.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.subscribers))
	for k := range c.subscribers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Unsubscribe removes uri from the subscribers of every key, so that a
// closed document is not reported by later invalidations.
func (c *Cache) Unsubscribe(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, subs := range c.subscribers {
		delete(subs, uri)
		if len(subs) == 0 {
			delete(c.subscribers, k)
		}
	}
}

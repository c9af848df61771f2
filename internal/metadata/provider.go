package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Key identifies a project. Documents sharing a Key share metadata.
type Key string

// Request asks a Provider for the metadata of one project. URI is the
// document that triggered the request; clients resolve the project from it.
type Request struct {
	Key Key
	URI string
}

// Provider fetches project metadata from an external source.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*ProjectMetadata, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*ProjectMetadata, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, req Request) (*ProjectMetadata, error) {
	return f(ctx, req)
}

// ErrNoProject is returned by providers that cannot associate a document
// with any project. It is never retried.
var ErrNoProject = errors.New("no project for document")

// FetchError wraps a failure to obtain metadata for a project.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch metadata for %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StaticProvider serves the same metadata to every project.
type StaticProvider struct {
	Metadata *ProjectMetadata
}

// Fetch returns p.Metadata, or empty metadata when unset.
func (p StaticProvider) Fetch(_ context.Context, req Request) (*ProjectMetadata, error) {
	if p.Metadata == nil {
		return New(string(req.Key)), nil
	}
	return p.Metadata, nil
}

// ChainProvider asks each provider in order and returns the first
// non-empty result. A provider answering ErrNoProject counts as empty.
// When every provider fails, their errors are joined.
type ChainProvider []Provider

func (c ChainProvider) Fetch(ctx context.Context, req Request) (*ProjectMetadata, error) {
	var errs []error
	var last *ProjectMetadata
	for _, p := range c {
		md, err := p.Fetch(ctx, req)
		if errors.Is(err, ErrNoProject) {
			md, err = New(string(req.Key)), nil
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !md.IsEmpty() {
			return md, nil
		}
		last = md
	}
	if last != nil {
		return last, nil
	}
	if len(errs) == 0 {
		return New(string(req.Key)), nil
	}
	return nil, errors.Join(errs...)
}

// RetryProvider retries transient failures of Next with exponential backoff.
type RetryProvider struct {
	Next            Provider
	MaxTries        uint
	InitialInterval time.Duration
}

// Fetch calls Next until it succeeds, the tries are exhausted, ctx is done,
// or Next returns ErrNoProject.
func (p *RetryProvider) Fetch(ctx context.Context, req Request) (*ProjectMetadata, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, func() (*ProjectMetadata, error) {
		md, err := p.Next.Fetch(ctx, req)
		if errors.Is(err, ErrNoProject) {
			return nil, backoff.Permanent(err)
		}
		return md, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

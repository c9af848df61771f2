package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.lsp.dev/uri"
)

// DefaultBuildMarkers are the files whose presence marks a project root.
var DefaultBuildMarkers = []string{"pom.xml", "build.gradle", "build.gradle.kts"}

// KeyResolver maps document URIs to project keys. Resolution for a
// directory is memoized; call Reset after project layout changes.
type KeyResolver struct {
	Markers []string

	mu   sync.Mutex
	dirs map[string]Key
}

// NewKeyResolver returns a resolver using DefaultBuildMarkers.
func NewKeyResolver() *KeyResolver {
	return &KeyResolver{Markers: DefaultBuildMarkers}
}

// ProjectKey returns the key for docURI: the nearest ancestor directory
// containing a build marker, or the document's own directory. Non-file URIs
// are their own key.
func (r *KeyResolver) ProjectKey(docURI string) Key {
	if !strings.HasPrefix(docURI, uri.FileScheme+"://") {
		return Key(docURI)
	}
	dir := filepath.Dir(uri.URI(docURI).Filename())

	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.dirs[dir]; ok {
		return k
	}
	k := Key(r.findRoot(dir))
	if r.dirs == nil {
		r.dirs = make(map[string]Key)
	}
	r.dirs[dir] = k
	return k
}

// Reset forgets memoized resolutions.
func (r *KeyResolver) Reset() {
	r.mu.Lock()
	r.dirs = nil
	r.mu.Unlock()
}

func (r *KeyResolver) findRoot(dir string) string {
	for cur := dir; ; {
		for _, marker := range r.Markers {
			if _, err := os.Stat(filepath.Join(cur, marker)); err == nil {
				return cur
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir
		}
		cur = parent
	}
}

// KeyFromProjectURI converts a project URI announced by the client into a
// Key comparable with ProjectKey results.
func KeyFromProjectURI(projectURI string) Key {
	if !strings.HasPrefix(projectURI, uri.FileScheme+"://") {
		return Key(projectURI)
	}
	return Key(filepath.Clean(uri.URI(projectURI).Filename()))
}

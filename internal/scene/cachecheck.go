package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MinCacheBytes is the smallest file size a cached asset may have before it
// is treated as corrupt. Truncated download leftovers are typically a few
// bytes of HTML error page.
const MinCacheBytes = 100

// Verifier checks whether a catalog asset reference points at a healthy
// local file. Only refs under the configured URL prefix are cache
// candidates; anything else (external demo URLs) is never a cache hit.
type Verifier struct {
	root      string
	urlPrefix string
	minBytes  int64
}

// NewVerifier builds a Verifier. root is the on-disk asset directory and
// urlPrefix is the public path it is served under (e.g. "/assets/").
func NewVerifier(root, urlPrefix string) (*Verifier, error) {
	if root == "" {
		return nil, fmt.Errorf("scene: asset root is required")
	}
	if urlPrefix == "" {
		urlPrefix = "/assets/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Verifier{root: root, urlPrefix: urlPrefix, minBytes: MinCacheBytes}, nil
}

// Local reports whether ref falls under the served asset URL prefix, i.e.
// whether this process is the one expected to host the file.
func (v *Verifier) Local(ref string) bool {
	return strings.HasPrefix(ref, v.urlPrefix)
}

// Verify reports whether ref is a servable cached asset. It returns false
// for external refs, missing files, directories and files below the size
// floor. The returned path is the resolved on-disk location when ok.
func (v *Verifier) Verify(ref string) (path string, ok bool) {
	rel, found := strings.CutPrefix(ref, v.urlPrefix)
	if !found || rel == "" {
		return "", false
	}
	// Reject traversal out of the asset root.
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", false
	}
	path = filepath.Join(v.root, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() < v.minBytes {
		return "", false
	}
	return path, true
}

package sitegen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitegen/cache"
)

// shortFingerprintLen is the number of fingerprint hex characters
// returned for cache-busting asset URLs.
const shortFingerprintLen = 16

// RenderStyles compiles the stylesheet at source into dest through the
// given cache, so an unchanged sheet skips the compiler entirely. The
// directory containing source is handed to the compiler as its
// "load_path" option, making sibling sheets available for inclusion;
// because the load path participates in the fingerprint, moving the
// sheet forces a recompile. Returns a short content fingerprint
// suitable for cache-busting URLs.
//
// The compiler itself is caller-supplied; any function from inputs to
// CSS bytes works, including a passthrough for plain CSS.
func RenderStyles(c *cache.Cache, source, dest string, compileFn cache.CompileFunc) (string, error) {
	src, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("styles %s: %w", source, err)
	}

	inputs := cache.Inputs{
		Source:  src,
		Options: map[string]string{"load_path": filepath.Dir(source)},
	}
	out, err := c.CompileOrCached(inputs, dest, compileFn)
	if err != nil {
		return "", fmt.Errorf("styles %s: %w", source, err)
	}

	return out.Fingerprint[:shortFingerprintLen], nil
}

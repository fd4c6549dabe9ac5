// Package sitegen provides composable building blocks for generating
// static content sites: glob-based source discovery, typed parsing into
// an ordered collection, parallel rendering through caller-supplied
// functions, static asset mirroring, and a content-addressed
// compilation cache for stylesheets.
//
// A typical site build chains the pieces:
//
//	matches, err := sitegen.Glob("content/blog/*.md")
//	if err != nil {
//		return err
//	}
//	posts, err := sitegen.Parse(matches, markdown.ParseFunc[BlogFrontmatter]())
//	if err != nil {
//		return err
//	}
//	sitegen.SortByKeyDesc(posts, func(d *markdown.Document[BlogFrontmatter]) string {
//		return d.Frontmatter.Date
//	})
//	if err := posts.RenderEach(renderPost, postPath); err != nil {
//		return err
//	}
//	return posts.RenderAll(renderIndex, "dist/blog/index.html")
//
// Parsing, rendering, and stylesheet compilation are all caller-supplied
// functions; the package owns only discovery, ordering, concurrency,
// caching, and error aggregation.
package sitegen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Matches is the set of filesystem paths produced by Glob, sorted
// lexically so every downstream stage processes them in a
// deterministic order regardless of directory iteration order.
type Matches struct {
	paths []string
}

// Glob expands a glob pattern into the set of matching paths that
// exist at call time. A pattern matching zero files is a valid empty
// result. A malformed pattern or an inaccessible base directory is an
// error.
func Glob(pattern string) (*Matches, error) {
	if base := globBase(pattern); base != "" {
		if _, err := os.Stat(base); err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	sort.Strings(paths)
	return &Matches{paths: paths}, nil
}

// globBase returns the longest leading directory of the pattern that
// contains no glob metacharacters, i.e. the directory the pattern is
// anchored in. Empty means the pattern is anchored in the current
// directory.
func globBase(pattern string) string {
	dir := filepath.Dir(pattern)
	for strings.ContainsAny(dir, `*?[\`) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return dir
}

// Paths returns a copy of the matched paths in lexical order.
func (m *Matches) Paths() []string {
	paths := make([]string, len(m.paths))
	copy(paths, m.paths)
	return paths
}

// Len returns the number of matched paths.
func (m *Matches) Len() int {
	return len(m.paths)
}

// Write writes data to path, creating parent directories as needed.
func Write(data []byte, path string) error {
	if parent := filepath.Dir(path); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

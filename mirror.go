package sitegen

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyDir mirrors the tree rooted at src into dst, preserving relative
// structure. Existing destination files are overwritten; missing
// destination directories are created. Individual copy failures are
// collected while the remaining entries are still attempted, and
// reported together as an *AggregateError in lexical path order. An
// unreadable source root is a structural error.
func CopyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror %s: not a directory", src)
	}

	var failures []*PathError
	// WalkDir visits entries in lexical order, which keeps the failure
	// aggregate deterministic.
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, &PathError{Path: path, Err: err})
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			failures = append(failures, &PathError{Path: path, Err: err})
			return nil
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				failures = append(failures, &PathError{Path: path, Err: err})
				// The subtree cannot land anywhere; move on to
				// siblings instead of failing each child separately.
				return fs.SkipDir
			}
			return nil
		}

		if err := copyFile(path, target); err != nil {
			failures = append(failures, &PathError{Path: path, Err: err})
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("mirror %s: %w", src, walkErr)
	}

	return aggregate("mirror", failures)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

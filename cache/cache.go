// Package cache provides a content-addressed compilation cache backed
// by the filesystem. It memoizes caller-supplied compile functions:
// identical inputs reuse the stored artifact byte for byte without
// invoking the compiler again, and any unreadable or corrupt cache
// state is treated as a miss, never as a failure. Disabling the cache
// changes performance only, never output.
//
// On disk the store has two levels: manifests/ holds one JSON record
// per output target mapping it to the fingerprint of the inputs that
// produced it, and objects/ holds the compiled artifacts keyed by that
// fingerprint.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Inputs are the semantically relevant inputs to a compilation: the
// source text and the resolved compiler options. File metadata such as
// timestamps deliberately has no representation here.
type Inputs struct {
	Source  []byte
	Options map[string]string
}

// Fingerprint returns the SHA-256 digest of the inputs in a canonical
// encoding. Option keys are hashed in sorted order so map iteration
// order cannot change the digest; changing any input byte changes it.
func (in Inputs) Fingerprint() string {
	h := sha256.New()
	h.Write(in.Source)

	keys := make([]string, 0, len(in.Options))
	for k := range in.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(in.Options[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// CompileFunc produces the compiled artifact for the given inputs.
type CompileFunc func(Inputs) ([]byte, error)

// Output is the result of CompileOrCached. On a hit, Data is byte
// identical to what a fresh compile of the same inputs would produce.
type Output struct {
	Data        []byte
	Fingerprint string
	Hit         bool
}

// manifest is the persisted record for one output target.
type manifest struct {
	Fingerprint string    `json:"fingerprint"`
	OutputPath  string    `json:"output_path"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Cache is a filesystem-backed compilation cache. It survives process
// restarts and tolerates concurrent in-process use through a coarse
// mutex; no cross-process locking is attempted.
type Cache struct {
	root string
	mu   sync.Mutex

	hits   int64
	misses int64
}

// Open opens (creating if necessary) a cache store rooted at the given
// directory.
func Open(root string) (*Cache, error) {
	for _, dir := range []string{root, filepath.Join(root, "manifests"), filepath.Join(root, "objects")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("opening cache at %s: %w", root, err)
		}
	}
	return &Cache{root: root}, nil
}

// CompileOrCached returns the compiled artifact for inputs destined
// for outputPath. On a hit it returns the stored bytes without
// invoking compile, restoring the on-disk artifact at outputPath if it
// has gone missing. On a miss it invokes compile, writes outputPath,
// and records the result, overwriting any stale record for the same
// output target. Errors persisting cache state leave the store cold
// for the next run but never fail the compilation.
func (c *Cache) CompileOrCached(inputs Inputs, outputPath string, compile CompileFunc) (Output, error) {
	fp := inputs.Fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	manPath := c.manifestPath(outputPath)
	prev, hasPrev := c.readManifest(manPath)

	if hasPrev && prev.Fingerprint == fp {
		if data, ok := c.readObject(fp); ok {
			atomic.AddInt64(&c.hits, 1)
			if err := c.restore(data, outputPath); err != nil {
				return Output{}, err
			}
			return Output{Data: data, Fingerprint: fp, Hit: true}, nil
		}
	}

	atomic.AddInt64(&c.misses, 1)
	data, err := compile(inputs)
	if err != nil {
		return Output{}, fmt.Errorf("compiling for %s: %w", outputPath, err)
	}

	if err := writeWithParents(outputPath, data); err != nil {
		return Output{}, err
	}

	// Evict the object the stale record pointed at before replacing
	// the record itself.
	if hasPrev && prev.Fingerprint != fp {
		os.Remove(c.objectPath(prev.Fingerprint))
	}
	c.store(fp, outputPath, data, manPath)

	return Output{Data: data, Fingerprint: fp, Hit: false}, nil
}

// Stats returns the hit and miss counts for this cache instance.
func (c *Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

func (c *Cache) manifestPath(outputPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(outputPath)))
	return filepath.Join(c.root, "manifests", hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) objectPath(fingerprint string) string {
	return filepath.Join(c.root, "objects", fingerprint)
}

// readManifest loads the record for an output target. Anything
// unreadable or undecodable counts as no record.
func (c *Cache) readManifest(path string) (manifest, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, false
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, false
	}
	if m.Fingerprint == "" {
		return manifest{}, false
	}
	return m, true
}

func (c *Cache) readObject(fingerprint string) ([]byte, bool) {
	data, err := os.ReadFile(c.objectPath(fingerprint))
	if err != nil {
		return nil, false
	}
	return data, true
}

// store persists the object and manifest for a fresh compile. Failures
// are ignored: the worst outcome is a recompile on the next run.
func (c *Cache) store(fingerprint, outputPath string, data []byte, manPath string) {
	if err := os.WriteFile(c.objectPath(fingerprint), data, 0o644); err != nil {
		return
	}
	m := manifest{
		Fingerprint: fingerprint,
		OutputPath:  outputPath,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = os.WriteFile(manPath, raw, 0o644)
}

// restore rewrites the on-disk artifact if it has been deleted since
// the record was made.
func (c *Cache) restore(data []byte, outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return nil
	}
	return writeWithParents(outputPath, data)
}

func writeWithParents(path string, data []byte) error {
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

package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Inputs{Source: []byte("body{}"), Options: map[string]string{"x": "1", "y": "2"}}
	b := Inputs{Source: []byte("body{}"), Options: map[string]string{"y": "2", "x": "1"}}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "option order must not matter")
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprintChangesWithAnyInput(t *testing.T) {
	base := Inputs{Source: []byte("body{}"), Options: map[string]string{"load_path": "styles"}}

	changedSource := Inputs{Source: []byte("body{ }"), Options: map[string]string{"load_path": "styles"}}
	assert.NotEqual(t, base.Fingerprint(), changedSource.Fingerprint())

	changedOption := Inputs{Source: []byte("body{}"), Options: map[string]string{"load_path": "other"}}
	assert.NotEqual(t, base.Fingerprint(), changedOption.Fingerprint())
}

func TestFingerprintOptionBoundaries(t *testing.T) {
	// Key/value concatenation must not collide: {"ab": "c"} vs {"a": "bc"}.
	a := Inputs{Options: map[string]string{"ab": "c"}}
	b := Inputs{Options: map[string]string{"a": "bc"}}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestCompileOrCachedInvokesCompileOnceForSameInputs(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)

	out := filepath.Join(dir, "styles.css")
	inputs := Inputs{Source: []byte("body{}")}

	compiles := 0
	compile := func(in Inputs) ([]byte, error) {
		compiles++
		return append([]byte("compiled:"), in.Source...), nil
	}

	first, err := c.CompileOrCached(inputs, out, compile)
	require.NoError(t, err)
	assert.False(t, first.Hit)

	second, err := c.CompileOrCached(inputs, out, compile)
	require.NoError(t, err)
	assert.True(t, second.Hit)

	assert.Equal(t, 1, compiles)
	// Cache hit bytes are identical to a fresh compile.
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCompileOrCachedSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "store")
	out := filepath.Join(dir, "styles.css")
	inputs := Inputs{Source: []byte("body{}")}

	c1, err := Open(root)
	require.NoError(t, err)
	_, err = c1.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)

	c2, err := Open(root)
	require.NoError(t, err)
	res, err := c2.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		t.Fatal("compile must not run on a persisted hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Hit)
}

func TestCompileOrCachedChangedInputForcesRecompile(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	out := filepath.Join(dir, "styles.css")

	compiles := 0
	compile := func(in Inputs) ([]byte, error) {
		compiles++
		return in.Source, nil
	}

	_, err = c.CompileOrCached(Inputs{Source: []byte("v1")}, out, compile)
	require.NoError(t, err)
	res, err := c.CompileOrCached(Inputs{Source: []byte("v2")}, out, compile)
	require.NoError(t, err)

	assert.Equal(t, 2, compiles)
	assert.False(t, res.Hit)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCompileOrCachedRestoresDeletedArtifact(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	out := filepath.Join(dir, "styles.css")
	inputs := Inputs{Source: []byte("body{}")}

	_, err = c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)

	require.NoError(t, os.Remove(out))

	res, err := c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		t.Fatal("hit must not recompile")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Hit)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}

func TestCorruptManifestIsAMissNotAnError(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	out := filepath.Join(dir, "styles.css")
	inputs := Inputs{Source: []byte("body{}")}

	_, err = c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)

	// Corrupt every manifest in the store.
	manifests, err := filepath.Glob(filepath.Join(dir, "store", "manifests", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, manifests)
	for _, m := range manifests {
		require.NoError(t, os.WriteFile(m, []byte("{not json"), 0o644))
	}

	compiles := 0
	res, err := c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		compiles++
		return in.Source, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, 1, compiles)
}

func TestMissingObjectIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	out := filepath.Join(dir, "styles.css")
	inputs := Inputs{Source: []byte("body{}")}

	res, err := c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "store", "objects", res.Fingerprint)))

	compiles := 0
	res, err = c.CompileOrCached(inputs, out, func(in Inputs) ([]byte, error) {
		compiles++
		return in.Source, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, 1, compiles)
}

func TestStaleObjectIsEvictedOnOverwrite(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	out := filepath.Join(dir, "styles.css")

	first, err := c.CompileOrCached(Inputs{Source: []byte("v1")}, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)

	_, err = c.CompileOrCached(Inputs{Source: []byte("v2")}, out, func(in Inputs) ([]byte, error) {
		return in.Source, nil
	})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "store", "objects", first.Fingerprint))
	assert.True(t, os.IsNotExist(statErr), "stale object for the same output target must be evicted")
}

func TestDistinctOutputTargetsDoNotShareRecords(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)
	inputs := Inputs{Source: []byte("shared")}

	compiles := 0
	compile := func(in Inputs) ([]byte, error) {
		compiles++
		return in.Source, nil
	}

	_, err = c.CompileOrCached(inputs, filepath.Join(dir, "a.css"), compile)
	require.NoError(t, err)
	_, err = c.CompileOrCached(inputs, filepath.Join(dir, "b.css"), compile)
	require.NoError(t, err)

	// Same fingerprint, but the second target has no record yet.
	assert.Equal(t, 2, compiles)
}

func TestCompileErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "store"))
	require.NoError(t, err)

	boom := errors.New("compile boom")
	_, err = c.CompileOrCached(Inputs{Source: []byte("x")}, filepath.Join(dir, "out.css"),
		func(Inputs) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

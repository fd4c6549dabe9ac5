package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "content/*.md", cfg.Content.Glob)
	assert.Equal(t, "dist", cfg.Output.Dir)
	assert.Equal(t, "static", cfg.Static.Dir)
	assert.Equal(t, ".sitegen-cache", cfg.Styles.CacheDir)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yml := `content:
  glob: "posts/*.md"
output:
  dir: "public"
styles:
  source: "styles/main.css"
watch:
  debounce: 500ms
log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sitegen.yml"), []byte(yml), 0o644))

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "posts/*.md", cfg.Content.Glob)
	assert.Equal(t, "public", cfg.Output.Dir)
	assert.Equal(t, "styles/main.css", cfg.Styles.Source)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SITEGEN_OUTPUT_DIR", "from-env")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Output.Dir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Content:  ContentConfig{Glob: "content/*.md"},
			Output:   OutputConfig{Dir: "dist"},
			Styles:   StylesConfig{CacheDir: ".cache"},
			Watch:    WatchConfig{Debounce: time.Millisecond},
			LogLevel: "info",
		}
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.Content.Glob = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Output.Dir = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Watch.Debounce = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Styles.Source = "main.css"
	c.Styles.CacheDir = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.LogLevel = "loud"
	assert.Error(t, c.Validate())
}

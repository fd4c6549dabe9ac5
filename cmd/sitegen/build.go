package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitegen"
	"github.com/conneroisu/sitegen/cache"
	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/logging"
	"github.com/conneroisu/sitegen/markdown"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		return buildSite(cmd.Context(), cfg, logger.WithComponent("build"))
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// frontmatter is the metadata block expected at the top of every
// content file.
type frontmatter struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
	Draft bool   `yaml:"draft"`
}

type post = markdown.Document[frontmatter]

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title><link rel="stylesheet" href="/styles.css?v={{.StyleHash}}"></head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Index</title><link rel="stylesheet" href="/styles.css?v={{.StyleHash}}"></head>
<body>
<ul>
{{range .Posts}}<li><a href="/{{.Slug}}/">{{.Frontmatter.Title}}</a> — {{.Frontmatter.Date}}</li>
{{end}}</ul>
</body>
</html>
`))

// buildSite runs the full pipeline: discover, parse, sort, render
// each page and the index, mirror static assets, and compile styles
// through the cache.
func buildSite(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	styleHash, err := buildStyles(ctx, cfg, logger)
	if err != nil {
		return err
	}

	matches, err := sitegen.Glob(cfg.Content.Glob)
	if err != nil {
		return err
	}
	logger.Info(ctx, "discovered content", "glob", cfg.Content.Glob, "files", matches.Len())

	posts, err := sitegen.Parse(matches, markdown.ParseFunc[frontmatter]())
	if err != nil {
		// Parse failures are aggregated; report them but keep building
		// with the documents that did parse.
		logger.Warn(ctx, err, "some content failed to parse")
	}
	sitegen.SortByKeyDesc(posts, func(d *post) string { return d.Frontmatter.Date })

	renderPage := func(d **post) ([]byte, error) {
		doc := *d
		title := doc.Frontmatter.Title
		if title == "" {
			title = doc.Title
		}
		return execTemplate(pageTemplate, map[string]any{
			"Title":     title,
			"Body":      template.HTML(doc.HTML),
			"StyleHash": styleHash,
		})
	}
	pagePath := func(d **post) string {
		return filepath.Join(cfg.Output.Dir, (*d).Slug, "index.html")
	}
	if err := posts.RenderEach(renderPage, pagePath); err != nil {
		return err
	}

	renderIndex := func(items []*post) ([]byte, error) {
		return execTemplate(indexTemplate, map[string]any{
			"Posts":     items,
			"StyleHash": styleHash,
		})
	}
	if err := posts.RenderAll(renderIndex, filepath.Join(cfg.Output.Dir, "index.html")); err != nil {
		return err
	}

	if cfg.Static.Dir != "" {
		if _, statErr := os.Stat(cfg.Static.Dir); statErr == nil {
			if err := sitegen.CopyDir(cfg.Static.Dir, cfg.Output.Dir); err != nil {
				return err
			}
			logger.Debug(ctx, "mirrored static assets", "dir", cfg.Static.Dir)
		}
	}

	logger.Info(ctx, "site built", "pages", posts.Len(), "output", cfg.Output.Dir)
	return nil
}

// buildStyles compiles the configured stylesheet through the
// content-addressed cache and returns its short fingerprint for
// cache-busting URLs. With no stylesheet configured it returns an
// empty hash.
func buildStyles(ctx context.Context, cfg *config.Config, logger logging.Logger) (string, error) {
	if cfg.Styles.Source == "" {
		return "", nil
	}

	store, err := cache.Open(cfg.Styles.CacheDir)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(cfg.Output.Dir, "styles.css")
	hash, err := sitegen.RenderStyles(store, cfg.Styles.Source, dest, passthroughCompile)
	if err != nil {
		return "", err
	}

	hits, misses := store.Stats()
	logger.Debug(ctx, "styles compiled", "hash", hash, "cache_hits", hits, "cache_misses", misses)
	return hash, nil
}

// passthroughCompile treats the stylesheet source as ready-to-serve
// CSS. Swap in a real compiler here to support SCSS and friends; the
// cache keys on source content plus options, so any CompileFunc slots
// in unchanged.
func passthroughCompile(in cache.Inputs) ([]byte, error) {
	return in.Source, nil
}

func execTemplate(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

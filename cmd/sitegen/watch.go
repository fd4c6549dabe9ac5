package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build the site and rebuild on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.WithComponent("watch")
		if err := buildSite(ctx, cfg, logger.WithComponent("build")); err != nil {
			// An initial failed build is worth reporting but should not
			// kill the watch loop; the next change may fix it.
			log.Error(ctx, err, "initial build failed")
		}

		w, err := watch.New(cfg.Watch.Debounce)
		if err != nil {
			return err
		}
		defer w.Stop()

		w.AddFilter(watch.NoHidden)
		w.AddFilter(watch.NoEditorTemp)
		w.OnError(func(err error) {
			log.Warn(ctx, err, "watch error")
		})
		w.OnChange(func(paths []string) {
			log.Info(ctx, "change detected", "paths", len(paths))
			if err := buildSite(ctx, cfg, logger.WithComponent("build")); err != nil {
				log.Error(ctx, err, "rebuild failed")
			}
		})

		roots := watchRoots(cfg)
		for _, root := range roots {
			if err := w.AddRecursive(root); err != nil {
				log.Warn(ctx, err, "skipping unwatchable root", "root", root)
			}
		}

		w.Start(ctx)
		log.Info(ctx, "watching for changes", "roots", roots, "debounce", cfg.Watch.Debounce)

		<-ctx.Done()
		log.Info(ctx, "shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchRoots derives the watch roots from config: explicit roots win,
// otherwise the content glob's base directory, the static dir, and the
// stylesheet's directory. Roots that do not exist are dropped.
func watchRoots(cfg *config.Config) []string {
	roots := cfg.Watch.Roots
	if len(roots) == 0 {
		candidates := []string{
			globBaseDir(cfg.Content.Glob),
			cfg.Static.Dir,
		}
		if cfg.Styles.Source != "" {
			candidates = append(candidates, filepath.Dir(cfg.Styles.Source))
		}
		for _, c := range candidates {
			if c != "" {
				roots = append(roots, c)
			}
		}
	}

	var existing []string
	seen := make(map[string]struct{})
	for _, root := range roots {
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = struct{}{}
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			existing = append(existing, root)
		}
	}
	return existing
}

// globBaseDir returns the leading directory of a glob pattern up to
// its first metacharacter.
func globBaseDir(pattern string) string {
	dir := filepath.Dir(pattern)
	for containsGlobMeta(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	if dir == "." {
		return ""
	}
	return dir
}

func containsGlobMeta(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			return true
		}
	}
	return false
}

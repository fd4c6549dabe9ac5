// Command sitegen builds a static site from markdown content using the
// sitegen pipeline: it globs the content directory, parses frontmatter
// documents, renders pages and an index, mirrors static assets, and
// compiles the stylesheet through the content-addressed cache. The
// watch subcommand re-runs the build on debounced filesystem changes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/logging"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sitegen",
	Short: "Generate a static site from markdown content",
	Long: `sitegen generates a static site from markdown content.

Configuration is read from .sitegen.yml in the working directory,
overridable through SITEGEN_* environment variables and flags:

  content:
    glob: "content/*.md"
  output:
    dir: "dist"
  static:
    dir: "static"
  styles:
    source: "styles/main.css"
    cache_dir: ".sitegen-cache"
  watch:
    debounce: 300ms`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	flags.String("output", "", "output directory (overrides output.dir)")
	flags.String("content", "", "content glob (overrides content.glob)")
	bindFlags(flags)
}

// bindFlags wires the persistent flags onto viper keys so they win
// over config file and environment values.
func bindFlags(flags *pflag.FlagSet) {
	bindings := map[string]string{
		"log_level":    "log-level",
		"output.dir":   "output",
		"content.glob": "content",
	}
	for key, name := range bindings {
		if flag := flags.Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}

// setup loads the configuration and builds the CLI logger. Unchanged
// flags fall through to config-file, environment, and default values;
// viper only honors a bound flag once it was actually passed.
func setup() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(&logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: "text",
		Output: rootCmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

// Package cli implements the scoreframes command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/scoreframes/pkg/buildinfo"
	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/pipeline"
	"github.com/matzehuels/scoreframes/pkg/quantize"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "scoreframes"

	// defaultConfigFile is picked up from the working directory when
	// --config is not given.
	defaultConfigFile = "scoreframes.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty probes defaultConfigFile.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Scoreframes turns sheet music into frames for small monochrome displays",
		Long:         `Scoreframes renders a score a few measures at a time, crops and thickens the notation, and writes numbered 1-bit bitmaps sized for a small monochrome display.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML config file (default ./"+defaultConfigFile+" if present)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.blankCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, opts pipeline.Options) (*pipeline.Runner, error) {
	cc, err := newCache(ctx, opts)
	if err != nil {
		return nil, err
	}
	q := quantize.New(opts.Magick, opts.QuantizeTimeout)
	return pipeline.NewRunner(cc, nil, q, c.Logger), nil
}

// newCache opens the backend named by opts.Cache. An unusable file cache
// directory degrades to no caching; an unreachable Redis is an error.
func newCache(ctx context.Context, opts pipeline.Options) (cache.Cache, error) {
	switch opts.Cache {
	case pipeline.CacheNone:
		return cache.NewNullCache(), nil
	case pipeline.CacheRedis:
		return cache.NewRedisCache(ctx, opts.RedisURL)
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/pipeline"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the render cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var backend, redisURL string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached renders and frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.DefaultOptions()
			if c.configPath != "" {
				loaded, err := pipeline.LoadOptions(c.configPath, opts)
				if err != nil {
					return err
				}
				opts = loaded
			}
			if cmd.Flags().Changed("cache") {
				opts.Cache = backend
			}
			if cmd.Flags().Changed("redis-url") {
				opts.RedisURL = redisURL
			}

			switch opts.Cache {
			case pipeline.CacheNone:
				printInfo("Caching is disabled")
				return nil
			case pipeline.CacheFile:
				dir, err := cache.DefaultDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					printInfo("Cache is empty")
					return nil
				}
			}

			cc, err := newCache(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cc.Close()

			clearer, ok := cc.(cache.Clearer)
			if !ok {
				return fmt.Errorf("cache backend %q cannot be cleared", opts.Cache)
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return err
			}

			printSuccess("Cleared %s cache", opts.Cache)
			if fc, ok := cc.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "cache", pipeline.CacheFile, "cache backend: file, redis")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL for --cache redis")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cache.DefaultDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

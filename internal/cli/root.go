// Package cli implements the code-intelligence admin command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gupsho/sourcegraph/internal/config"
	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/store"
)

var configPath string

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Store  *store.Store
	Disk   *diskstore.Store
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads the configuration and opens the metadata and disk stores
func initContext() *cmdContext {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitError("%v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		exitError("failed to initialize store: %v", err)
	}

	disk, err := diskstore.New(cfg.StorageRoot)
	if err != nil {
		st.Close()
		exitError("failed to open storage root: %v", err)
	}

	return &cmdContext{Config: cfg, Store: st, Disk: disk}
}

var rootCmd = &cobra.Command{
	Use:   "codeintel",
	Short: "Code intelligence administration",
	Long: `Administration commands for the code-intelligence pipeline: enqueue index
bundles, inspect the upload queue and dump catalogue, re-queue failed
uploads, and run the retention purge.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/codeintel/config.toml", "Path to the configuration file")

	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(requeueCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

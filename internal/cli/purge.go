package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gupsho/sourcegraph/internal/worker"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run the retention purge once",
	Long: `Evict the oldest dumps not visible from any repository tip until the
artifact directory fits within the configured quota. Runs under the same
retention lock as the worker daemon, so it is safe alongside a live fleet.`,
	Run: runPurge,
}

func runPurge(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if c.Config.MaxStorageBytes < 0 {
		fmt.Println("No storage quota configured; nothing to purge")
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	result, err := worker.PurgeOldDumps(context.Background(), c.Store, c.Disk,
		c.Config.MaxStorageBytes, logger)
	if err != nil {
		exitError("purge failed: %v", err)
	}

	fmt.Printf("Deleted %d dump(s): %s -> %s\n",
		result.DumpsDeleted,
		humanize.Bytes(uint64(result.BytesBefore)),
		humanize.Bytes(uint64(result.BytesAfter)))

	if !result.QuotaSatisfied {
		color.New(color.FgYellow).Println("Still over quota: every remaining dump is visible from a repository tip")
	}
}

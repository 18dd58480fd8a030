package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gupsho/sourcegraph/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth, dump counts, and disk usage",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	counts, err := c.Store.CountUploads(ctx)
	if err != nil {
		exitError("failed to count uploads: %v", err)
	}

	total, visible, err := c.Store.CountDumps(ctx)
	if err != nil {
		exitError("failed to count dumps: %v", err)
	}

	size, err := c.Disk.DBDirSize()
	if err != nil {
		exitError("failed to measure artifact directory: %v", err)
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	fmt.Println("Upload queue:")
	fmt.Printf("  queued:     %d\n", counts[models.UploadStateQueued])
	fmt.Printf("  processing: %d\n", counts[models.UploadStateProcessing])
	if errored := counts[models.UploadStateErrored]; errored > 0 {
		red.Printf("  errored:    %d\n", errored)
	} else {
		fmt.Printf("  errored:    0\n")
	}

	fmt.Println("\nDumps:")
	fmt.Printf("  total:          %d\n", total)
	fmt.Printf("  visible at tip: %d\n", visible)

	fmt.Println("\nStorage:")
	fmt.Printf("  artifact directory: %s\n", humanize.Bytes(uint64(size)))
	if c.Config.MaxStorageBytes < 0 {
		fmt.Println("  quota:              unlimited")
		return
	}

	fmt.Printf("  quota:              %s\n", humanize.Bytes(uint64(c.Config.MaxStorageBytes)))
	if size > c.Config.MaxStorageBytes {
		yellow.Println("  over quota; the next purge will evict unreachable dumps")
	} else {
		green.Println("  within quota")
	}
}

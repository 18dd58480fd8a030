package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gupsho/sourcegraph/internal/worker"
)

var (
	enqueueRepository string
	enqueueCommit     string
	enqueueRoot       string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <bundle>",
	Short: "Queue an index bundle for conversion",
	Long: `Copy an index bundle into the storage root and queue it for conversion.
The worker daemon picks it up, converts it to a queryable artifact, and
publishes it for the given repository, commit, and root.`,
	Args: cobra.ExactArgs(1),
	Run:  runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueRepository, "repo", "", "Repository the bundle was indexed from (required)")
	enqueueCmd.Flags().StringVar(&enqueueCommit, "commit", "", "Commit the bundle was indexed at (required)")
	enqueueCmd.Flags().StringVar(&enqueueRoot, "root", "", "Root path prefix the index covers")
	enqueueCmd.MarkFlagRequired("repo")
	enqueueCmd.MarkFlagRequired("commit")
}

func runEnqueue(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	id, err := worker.Enqueue(context.Background(), c.Store, c.Disk,
		enqueueRepository, enqueueCommit, enqueueRoot, args[0])
	if err != nil {
		exitError("failed to enqueue upload: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Queued upload %d", id)
	fmt.Printf(" for %s@%s\n", enqueueRepository, shortID(enqueueCommit))
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gupsho/sourcegraph/internal/store"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue <upload-id>",
	Short: "Return an errored upload to the queue",
	Long: `Clear the failure summary of an errored upload and mark it queued again.
The upload payload is kept on disk after a failed conversion, so the next
worker pass retries it from the original bundle.`,
	Args: cobra.ExactArgs(1),
	Run:  runRequeue,
}

func runRequeue(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitError("invalid upload id %q", args[0])
	}

	c := initContext()
	defer c.Close()

	if err := c.Store.RequeueUpload(context.Background(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			exitError("no errored upload with id %d", id)
		}
		exitError("failed to requeue upload: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Upload %d returned to the queue\n", id)
}

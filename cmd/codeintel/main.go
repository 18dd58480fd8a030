// Command codeintel administers the code-intelligence pipeline.
package main

import (
	"os"

	"github.com/gupsho/sourcegraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command clustergcn runs the graph clustering and batch construction
// pipeline from the command line: partition a dataset, inspect the
// clustering statistics, or stream batches through a dry-run consumer.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Command colstat computes statistics over CSV, JSON and Parquet files
// without loading more than one chunk of evaluated values at a time.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

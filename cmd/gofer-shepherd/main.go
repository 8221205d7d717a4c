// Command gofer-shepherd exercises the run execution core end-to-end: it loads a pipeline
// definition from a local file, starts a run through the core, waits for it to finish, and prints
// the resulting task execution statuses.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command kaiseki tokenizes text with a dictionary-driven morphological
// analyzer, from the command line or as a JSON HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command sophia runs the multi-agent orchestrator and its maintenance tools.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/tebeka/atexit"

	"github.com/simline/simline/cmd"
)

func main() {
	cmd.Execute()
	// Runs registered exit handlers, such as flushing an open event trace.
	atexit.Exit(0)
}

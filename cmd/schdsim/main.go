// Command schdsim runs scheduling models.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/schd/report"
)

func main() {
	err := newRootCmd().Execute()
	atexit.Exit(exitCode(err))
}

// exitCode tells the kind of the fatal error to the shell.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case report.IsKind(err, report.ModelError):
		return 2
	case report.IsKind(err, report.ProtocolError):
		return 3
	case report.IsKind(err, report.InvariantViolation):
		return 4
	default:
		return 1
	}
}

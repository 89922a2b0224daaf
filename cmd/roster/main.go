// Roster - command-line client for the student roster service.
//
// Build with:
//
//	go build -ldflags "-X github.com/schoolroster/roster-client/internal/version.Version=v1.2.0" ./cmd/roster
package main

import (
	"os"

	"github.com/schoolroster/roster-client/internal/cli"
)

func main() {
	// Cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

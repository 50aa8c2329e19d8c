package main

import (
	"httpbridge/cmd/httpbridge/cmd"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.Execute(version, commit, buildDate)
}

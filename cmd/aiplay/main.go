// cmd/aiplay/main.go
package main

import (
	aiplay "github.com/mwiater/aiplay/internal/commands"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = aiplay.SetVersionInfo
	executeCmd     = aiplay.Execute
)

// main starts the aiplay CLI application by delegating to the cobra root
// command defined in the commands package.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}

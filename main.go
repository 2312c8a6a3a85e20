package main

import "github.com/lepinkainen/tankobon/cmd"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var execute = cmd.Execute

func main() {
	execute(version)
}

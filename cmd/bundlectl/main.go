package main

import "github.com/GTDGit/gtd_bundle/cmd/bundlectl/cmd"

func main() {
	cmd.Execute()
}

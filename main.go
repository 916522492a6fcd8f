package main

import "github.com/agentic-research/pagefly/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/heapgraph-analysis/cmd/cli/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"os"

	"github.com/petrijr/stepgraph/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

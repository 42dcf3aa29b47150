package main

import (
	"os"

	"respd/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}

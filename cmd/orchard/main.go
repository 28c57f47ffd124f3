package main

import (
	"os"

	"github.com/GriffinCanCode/orchard/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}

package main

import (
	"os"

	"github.com/compozy/plansync/cli"
)

func main() {
	os.Exit(cli.Execute())
}

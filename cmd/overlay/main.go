package main

import (
	"os"

	"github.com/goliatone/go-overlay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

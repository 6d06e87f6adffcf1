package main

import (
	"os"

	"github.com/ashkelon/starhelm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

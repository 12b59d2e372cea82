package main

import (
	"os"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

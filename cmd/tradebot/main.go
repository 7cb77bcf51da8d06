package main

import (
	"os"

	"github.com/quantfold/tradebot/cmd/tradebot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

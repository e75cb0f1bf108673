package main

import (
	"os"

	"github.com/wakefire/wakefire/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

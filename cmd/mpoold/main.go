package main

import (
	"os"

	"merklepool/cmd/mpoold/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

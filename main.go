package main

import (
	"os"

	"github.com/scan-io-git/hdf-tools/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}

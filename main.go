package main

import (
	"os"

	"github.com/yajur-khanna/asm-tool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

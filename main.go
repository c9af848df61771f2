package main

import (
	"fmt"
	"os"

	"github.com/tinovyatkin/propls/cmd/propls/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

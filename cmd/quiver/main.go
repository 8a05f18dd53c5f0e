package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	a := &app{}
	root := newRootCommand(a)
	err := root.Execute()
	a.close()

	if err != nil {
		if data, jerr := errors.ToBoundary(err).JSON(); jerr == nil {
			fmt.Fprintln(os.Stderr, string(data))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

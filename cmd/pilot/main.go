// Package main provides the entry point for the pilot CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/randalmurphal/pilot/internal/cli"
)

func main() {
	// Best-effort: oracle credentials often live in a local .env.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

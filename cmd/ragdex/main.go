package main

import (
	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragdex/internal/adapters/driving/cli"
)

func main() {
	// Missing .env is fine; environment variables win either way.
	_ = godotenv.Load()

	cli.Execute()
}

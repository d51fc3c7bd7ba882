package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := fang.Execute(context.Background(), NewRootCmd(version)); err != nil {
		os.Exit(1)
	}
}

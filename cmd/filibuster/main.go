package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang/v2"

	"github.com/filibuster-io/filibuster-go/internal/version"
)

func main() {
	ctx := context.Background()

	if err := fang.Execute(ctx, rootCmd, fang.WithVersion(version.String())); err != nil {
		os.Exit(1)
	}
}

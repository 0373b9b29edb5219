package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrymomot/delayq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "delayq:", err)
		os.Exit(1)
	}
}

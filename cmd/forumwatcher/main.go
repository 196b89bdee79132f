package main

import (
	"fmt"
	"os"

	"ForumWatcher/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "forumwatcher:", err)
		os.Exit(1)
	}
}

// Command sayquiz runs spoken vocabulary quizzes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sayquiz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// Command videopro cleans the speech track of a video, transcribes it into
// subtitles, and optionally replaces the voice with synthesized speech that
// keeps the original timing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

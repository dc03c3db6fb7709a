package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/dhamidi/localchat/markup"
)

// handleRenderCommand prints the markup for a markdown file, or stdin.
func handleRenderCommand(args []string) {
	renderCmd := pflag.NewFlagSet("render", pflag.ExitOnError)
	renderCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: localchat render [FILE]\n")
		fmt.Fprintf(os.Stderr, "Converts markdown from FILE, or standard input, to HTML on standard output.\n")
		renderCmd.PrintDefaults()
	}
	renderCmd.Parse(args)
	if renderCmd.NArg() > 1 {
		renderCmd.Usage()
		die("Error: 'render' takes at most one file")
	}

	var input io.Reader = os.Stdin
	if renderCmd.NArg() == 1 {
		f, err := os.Open(renderCmd.Arg(0))
		if err != nil {
			die("Error opening %s: %v", renderCmd.Arg(0), err)
		}
		defer f.Close()
		input = f
	}

	text, err := io.ReadAll(input)
	if err != nil {
		die("Error reading input: %v", err)
	}
	fmt.Println(markup.Render(string(text)))
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: localchat [command] [flags]

Commands:
  chat      Chat interactively (default)
  history   List, show, rename, delete or export saved conversations
  render    Convert markdown to safe HTML

Run 'localchat <command> --help' for the flags of a command.
`)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "chat":
			handleChatCommand(args[1:])
			return
		case "history":
			handleHistoryCommand(args[1:])
			return
		case "render":
			handleRenderCommand(args[1:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}
	handleChatCommand(args)
}

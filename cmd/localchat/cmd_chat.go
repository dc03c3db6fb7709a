package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/dhamidi/localchat"
	"github.com/dhamidi/localchat/config"
	"github.com/dhamidi/localchat/history"
)

// handleChatCommand runs the interactive chat.
func handleChatCommand(args []string) {
	chatCmd := pflag.NewFlagSet("chat", pflag.ExitOnError)
	configPath := addConfigFlag(chatCmd)
	continueID := chatCmd.StringP("continue", "c", "", "Continue a conversation: --continue=ID, or the latest one when given without a value")
	chatCmd.Lookup("continue").NoOptDefVal = "latest"
	conversationID := chatCmd.String("conversation-id", "", "ID of a specific conversation to load")
	modelName := chatCmd.StringP("model", "m", "", "The name of the model to use")
	output := chatCmd.String("output", "text", "Output format: text or json")
	transcriptPath := chatCmd.String("transcript", "", "Also write an HTML transcript to this file")
	offline := chatCmd.Bool("offline", false, "Use scripted replies instead of the model")
	ephemeral := chatCmd.Bool("ephemeral", false, "Keep conversations in memory only")
	noGlamour := chatCmd.Bool("no-glamour", false, "Print replies as they stream instead of rendering them when complete")
	chatCmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: localchat [chat] [flags]\n")
		fmt.Fprintf(os.Stderr, "Chats with the model. Type /help for commands.\n")
		chatCmd.PrintDefaults()
	}
	chatCmd.Parse(args)
	if chatCmd.NArg() != 0 {
		chatCmd.Usage()
		die("Error: Unexpected positional arguments: %v", chatCmd.Args())
	}
	if *output != "text" && *output != "json" {
		die("Error: --output must be 'text' or 'json'")
	}

	a := setup(*configPath, func(cfg *config.Config) {
		if *modelName != "" {
			cfg.Model.Name = *modelName
		}
		if *ephemeral {
			cfg.Store.Backend = config.BackendMemory
		}
		if *noGlamour {
			cfg.Display.Glamour = false
		}
		if *transcriptPath != "" {
			cfg.Display.Transcript = *transcriptPath
		}
	})
	defer a.Close()

	ctx := context.Background()
	source, err := newSource(ctx, a, *offline)
	if err != nil {
		a.Close()
		die("Error: %v", err)
	}

	display := newDisplay(a, *output)
	session := localchat.NewSession(a.store, source, display, localchat.WithSessionLogger(a.logger))

	if id := resumeID(a, *conversationID, *continueID); id != "" {
		if err := session.Load(id); err != nil {
			a.logger.Warn("could not resume conversation", "id", id, "error", err)
		}
	}

	if *output == "text" {
		fmt.Printf("Chat with %s (type /help for commands, Ctrl-D to quit)\n", a.cfg.Model.Name)
	}
	runChatLoop(ctx, session, display, *output == "text")
}

func newSource(ctx context.Context, a *app, offline bool) (localchat.TextSource, error) {
	if offline {
		return localchat.NewScriptedSource(), nil
	}
	return localchat.NewGeminiSource(ctx, a.cfg.Model.APIKey, a.cfg.Model.Name, a.cfg.Model.SystemPrompt, a.logger.With("component", "gemini"))
}

func newDisplay(a *app, output string) localchat.Display {
	var display localchat.Display
	switch {
	case output == "json":
		display = localchat.NewJSONLinesDisplay(os.Stdout)
	case a.cfg.Display.Glamour:
		display = localchat.NewGlamourousTextDisplay(os.Stdout, a.logger)
	default:
		display = localchat.NewRawTextDisplay(os.Stdout)
	}
	if a.cfg.Display.Transcript != "" {
		transcript := localchat.NewHTMLTranscript(afero.NewOsFs(), a.cfg.Display.Transcript, a.logger)
		display = localchat.MultiDisplay{display, transcript}
	}
	return display
}

// resumeID picks the conversation to load at startup. An explicit id wins
// over --continue.
func resumeID(a *app, conversationID, continueID string) string {
	if conversationID != "" {
		if continueID != "" {
			a.logger.Warn("both --conversation-id and --continue given, using --conversation-id")
		}
		return conversationID
	}
	if continueID != "latest" {
		return continueID
	}
	id, err := a.store.Latest()
	if errors.Is(err, history.ErrConversationNotFound) {
		a.logger.Info("no conversations found, starting a new one")
		return ""
	}
	return id
}

func runChatLoop(ctx context.Context, session *localchat.Session, display localchat.Display, showPrompt bool) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if showPrompt {
			fmt.Print("\u001b[94mYou\u001b[0m: ")
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()

		if cmd, ok := parseSlashCommand(line); ok {
			if quit := runSlashCommand(session, display, cmd); quit {
				return
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		session.Send(turnCtx, line)
		stop()
	}
}
